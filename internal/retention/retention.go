// Package retention prunes aged snapshot and contact rows on a jittered
// schedule so the store stays bounded.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/db"
)

type Worker struct {
	dbProvider      db.Provider
	interval        time.Duration
	runTimeout      time.Duration
	snapshotsMaxAge time.Duration
	contactMaxAge   time.Duration

	runDuration *prometheus.HistogramVec
}

func NewWorker(store db.Provider, cfg *config.Config, reg prometheus.Registerer) (*Worker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Retention.Interval <= 0 {
		return nil, fmt.Errorf("retention.interval must be positive (got: %v)", cfg.Retention.Interval)
	}

	if cfg.Retention.RunTimeout <= 0 {
		return nil, fmt.Errorf("retention.run_timeout must be positive (got: %v)", cfg.Retention.RunTimeout)
	}

	if cfg.Retention.SnapshotsMaxAge <= 0 {
		return nil, fmt.Errorf("retention.snapshots_max_age must be positive (got: %v)", cfg.Retention.SnapshotsMaxAge)
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	w := &Worker{
		dbProvider:      store,
		interval:        cfg.Retention.Interval,
		runTimeout:      cfg.Retention.RunTimeout,
		snapshotsMaxAge: cfg.Retention.SnapshotsMaxAge,
		contactMaxAge:   cfg.Retention.ContactMaxAge,
	}

	w.runDuration = promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retention_run_duration_seconds",
		Help:    "Duration of retention runs in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	jitterBase := w.interval / 5
	if jitterBase == 0 {
		jitterBase = 1
	}
	jitter := time.Duration(rand.Int63n(int64(jitterBase)))
	ticker := time.NewTicker(w.interval + jitter)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-w.snapshotsMaxAge)
	deleted, err := w.dbProvider.DeleteSnapshotsBefore(runCtx, cutoff)
	if err != nil {
		slog.Error("retention: failed to delete old snapshots", "err", err, "cutoff", cutoff)
		w.runDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		return
	}

	var contactDeleted int64
	if w.contactMaxAge > 0 {
		contactCutoff := time.Now().UTC().Add(-w.contactMaxAge)
		contactDeleted, err = w.dbProvider.DeleteContactMessagesBefore(runCtx, contactCutoff)
		if err != nil {
			slog.Error("retention: failed to delete old contact messages", "err", err, "cutoff", contactCutoff)
			w.runDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
			return
		}
	}

	slog.Info("retention: cleanup complete", "snapshots", deleted, "contact_messages", contactDeleted, "cutoff", cutoff)
	w.runDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
}
