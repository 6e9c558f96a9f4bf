package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "STUDYPULSE_"

// Defaults applied by FromEnv and Validate.
const (
	DefaultDriver              = "sqlite"
	DefaultSyncInterval        = 6 * time.Hour
	DefaultSyncConcurrency     = 4
	DefaultRecommendationLimit = 6
)

// Profile is the configuration to start the study engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where studypulse stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// SyncInterval is how often the revision to concept sync runs. Zero disables it.
	SyncInterval time.Duration // STUDYPULSE_SYNC_INTERVAL (default: 6h)
	// SyncConcurrency bounds how many owners are synced at once.
	SyncConcurrency int // STUDYPULSE_SYNC_CONCURRENCY (default: 4)
	// SyncRate caps how many owner syncs start per second. Zero means no cap.
	SyncRate float64 // STUDYPULSE_SYNC_RATE (default: 0)
	// RecommendationLimit is used when a caller asks for recommendations without a limit.
	RecommendationLimit int // STUDYPULSE_RECOMMENDATION_LIMIT (default: 6)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from STUDYPULSE_* environment variables.
// Fields already set are only overridden by non-empty variables.
func (p *Profile) FromEnv() error {
	p.Mode = getEnvOrDefault("MODE", p.Mode)
	p.Data = getEnvOrDefault("DATA", p.Data)
	p.DSN = getEnvOrDefault("DSN", p.DSN)
	p.Driver = getEnvOrDefault("DRIVER", p.Driver)
	if p.Driver == "" {
		p.Driver = DefaultDriver
	}

	if raw := getEnvOrDefault("SYNC_INTERVAL", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return errors.Wrapf(err, "invalid %sSYNC_INTERVAL %q", EnvPrefix, raw)
		}
		p.SyncInterval = d
	} else if p.SyncInterval == 0 {
		p.SyncInterval = DefaultSyncInterval
	}

	concurrency, err := intFromEnv("SYNC_CONCURRENCY", p.SyncConcurrency, DefaultSyncConcurrency)
	if err != nil {
		return err
	}
	p.SyncConcurrency = concurrency

	if raw := getEnvOrDefault("SYNC_RATE", ""); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %sSYNC_RATE %q", EnvPrefix, raw)
		}
		p.SyncRate = r
	}

	limit, err := intFromEnv("RECOMMENDATION_LIMIT", p.RecommendationLimit, DefaultRecommendationLimit)
	if err != nil {
		return err
	}
	p.RecommendationLimit = limit
	return nil
}

func intFromEnv(key string, current, defaultValue int) (int, error) {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		if current == 0 {
			return defaultValue, nil
		}
		return current, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s%s %q", EnvPrefix, key, raw)
	}
	return v, nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "":
		p.Driver = DefaultDriver
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.SyncInterval < 0 {
		return errors.Errorf("sync interval must not be negative, got %s", p.SyncInterval)
	}
	if p.SyncRate < 0 {
		return errors.Errorf("sync rate must not be negative, got %v", p.SyncRate)
	}
	if p.SyncConcurrency <= 0 {
		p.SyncConcurrency = DefaultSyncConcurrency
	}
	if p.RecommendationLimit <= 0 {
		p.RecommendationLimit = DefaultRecommendationLimit
	}

	if p.Driver != "sqlite" || p.DSN != "" {
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "studypulse")
		} else {
			p.Data = "/var/opt/studypulse"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}
	if _, err := os.Stat(p.Data); os.IsNotExist(err) {
		if err := os.MkdirAll(p.Data, 0770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	p.DSN = filepath.Join(dataDir, fmt.Sprintf("studypulse_%s.db", p.Mode))
	return nil
}
