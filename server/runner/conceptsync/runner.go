// Package conceptsync runs the revision to concept sync on a fixed interval.
package conceptsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/server/internal/observability"
	"github.com/hrygo/studypulse/server/service/study"
)

// DefaultInterval is used when the profile leaves the sync interval unset.
const DefaultInterval = 6 * time.Hour

// Syncer is the part of the study service the runner drives.
type Syncer interface {
	SyncAll(ctx context.Context) (*study.SyncReport, error)
}

type Runner struct {
	syncer    Syncer
	interval  time.Duration
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures the runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the metrics reported after each run. Defaults to the global one,
// which is also what the study service records into by default.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = metrics }
}

// NewRunner creates a sync runner. A non-positive interval falls back to DefaultInterval.
func NewRunner(syncer Syncer, interval time.Duration, opts ...Option) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Runner{
		syncer:    syncer,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    slog.Default(),
		metrics:   observability.GlobalMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run syncs once on startup, then every interval, until ctx is done.
// Runs never overlap: a tick that fires while a sync is still going is skipped.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.scheduler.Every(r.interval).SingletonMode().Do(r.RunOnce, ctx); err != nil {
		return errors.Wrap(err, "failed to schedule concept sync")
	}
	r.scheduler.StartAsync()
	r.logger.Info("concept sync runner started", slog.Duration("interval", r.interval))

	<-ctx.Done()
	r.scheduler.Stop()
	r.logger.Info("concept sync runner stopped")
	return nil
}

// RunOnce syncs every owner once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer r.logMetrics()

	report, err := r.syncer.SyncAll(ctx)
	if err != nil {
		r.logger.Error("concept sync failed", slog.String("error", err.Error()))
		return
	}
	for owner, failure := range report.Failed {
		r.logger.Warn("concept sync failed for owner", slog.String("owner", owner), slog.String("error", failure.Error()))
	}
	r.logger.Info("concept sync finished",
		slog.Int("owners", report.Owners),
		slog.Int("concepts", report.Concepts),
		slog.Int("failed", len(report.Failed)),
	)
}

// logMetrics reports the cumulative per-operation counters of the process.
func (r *Runner) logMetrics() {
	snap := r.metrics.Snapshot()
	attrs := []any{
		slog.Int64("requests", snap.RequestTotal),
		slog.Int64("failed", snap.RequestFailed),
		slog.Float64("success_rate", snap.SuccessRate()),
	}
	for _, name := range snap.OperationNames() {
		op := snap.Operations[name]
		attrs = append(attrs, slog.Group(name,
			slog.Int64("count", op.ExecutionCount),
			slog.Int64("errors", op.ErrorCount),
			slog.Int64("avg_ms", op.AverageDuration),
		))
	}
	r.logger.Info("study metrics", attrs...)
}
