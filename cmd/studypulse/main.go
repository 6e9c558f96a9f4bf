package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/server/service/study"
	"github.com/hrygo/studypulse/store"
	"github.com/hrygo/studypulse/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "studypulse",
	Short: "Spaced repetition and concept mastery tracking",
	Long: `studypulse schedules revision items with SM-2, tracks per-concept mastery,
builds a concept graph and recommends what to study next.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", profile.DefaultDriver)
	viper.SetDefault("data", "")
	viper.SetDefault("dsn", "")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the instance, "prod", "dev" or "demo"`)
	flags.String("data", "", "data directory for the sqlite database")
	flags.String("driver", profile.DefaultDriver, "database driver (sqlite or postgres)")
	flags.String("dsn", "", "database source name")
	flags.String("owner", "", "owner the command acts on")
	flags.Bool("debug", false, "enable debug logging")

	for _, name := range []string{"mode", "data", "driver", "dsn", "owner", "debug"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("studypulse")
	viper.AutomaticEnv()

	rootCmd.AddCommand(migrateCmd, itemCmd, conceptCmd, graphCmd, recommendCmd, syncCmd, serveCmd)
}

// loadDotEnv reads a .env file from the working directory when one exists.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}
}

func newProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,
	}
	if err := p.FromEnv(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// app bundles what every subcommand needs.
type app struct {
	profile *profile.Profile
	store   *store.Store
	service study.Service
}

func openApp(ctx context.Context) (*app, error) {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	p, err := newProfile()
	if err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &app{profile: p, store: st, service: study.NewService(st, p)}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", slog.String("error", err.Error()))
	}
}

// withApp opens the app for one command run and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func owner() (string, error) {
	o := viper.GetString("owner")
	if o == "" {
		return "", errors.New("--owner (or STUDYPULSE_OWNER) is required")
	}
	return o, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", a.profile.Driver)
		return nil
	}),
}

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
