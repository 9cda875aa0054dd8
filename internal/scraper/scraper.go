// Package scraper polls the upstream metrics endpoint, turns each exposition
// into a dashboard, and fans it out to the cache and the snapshot store.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/funnelchat/console/internal/cache"
	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/db"
	"github.com/funnelchat/console/internal/metrics"
	"github.com/funnelchat/console/internal/upstream"
)

type Scraper struct {
	client     *upstream.Client
	dbProvider db.Provider
	cache      cache.DashboardCache

	interval   time.Duration
	runTimeout time.Duration
	cacheTTL   time.Duration

	mu       sync.Mutex
	lastHash uint64

	scrapeDuration prometheus.Histogram
	scrapeSuccess  prometheus.Counter
	scrapeFailure  prometheus.Counter
	scrapesSkipped prometheus.Counter
}

func New(client *upstream.Client, dbProvider db.Provider, dashCache cache.DashboardCache, cfg *config.Config, reg prometheus.Registerer) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Scrape.Interval <= 0 {
		return nil, fmt.Errorf("scrape.interval must be positive (got: %v)", cfg.Scrape.Interval)
	}
	if cfg.Scrape.Timeout <= 0 {
		return nil, fmt.Errorf("scrape.timeout must be positive (got: %v)", cfg.Scrape.Timeout)
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Scraper{
		client:     client,
		dbProvider: dbProvider,
		cache:      dashCache,
		interval:   cfg.Scrape.Interval,
		runTimeout: cfg.Scrape.Timeout,
		cacheTTL:   cfg.Scrape.CacheTTL,
	}

	s.scrapeDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "console_scrape_duration_seconds",
		Help:    "Duration of upstream metrics scrapes in seconds",
		Buckets: prometheus.DefBuckets,
	})
	s.scrapeSuccess = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "console_scrape_success_total",
		Help: "Total number of successful upstream scrapes",
	})
	s.scrapeFailure = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "console_scrape_failure_total",
		Help: "Total number of failed upstream scrapes",
	})
	s.scrapesSkipped = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "console_scrapes_skipped_total",
		Help: "Total number of scrapes skipped because the exposition was unchanged",
	})

	return s, nil
}

func (s *Scraper) Run(ctx context.Context) {
	jitterBase := s.interval / 5
	if jitterBase == 0 {
		jitterBase = 1
	}
	jitter := time.Duration(rand.Int63n(int64(jitterBase)))
	ticker := time.NewTicker(s.interval + jitter)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scraper) runOnce(ctx context.Context) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	body, err := s.client.FetchMetrics(runCtx)
	if err != nil {
		slog.Error("scraper: fetch upstream metrics", "err", err)
		s.scrapeFailure.Inc()
		s.scrapeDuration.Observe(time.Since(start).Seconds())
		return
	}

	hash := xxhash.Sum64(body)

	snap, err := metrics.Parse(bytes.NewReader(body))
	if err != nil {
		slog.Error("scraper: parse exposition", "err", err)
		s.scrapeFailure.Inc()
		s.scrapeDuration.Observe(time.Since(start).Seconds())
		return
	}

	dash := metrics.ToDashboard(snap, metrics.Options{})

	if err := s.cache.Set(runCtx, "", dash, s.cacheTTL); err != nil {
		slog.Warn("scraper: refresh dashboard cache", "err", err)
	}

	s.mu.Lock()
	unchanged := hash == s.lastHash && s.lastHash != 0
	s.lastHash = hash
	s.mu.Unlock()

	// An unchanged exposition still refreshes the cache above but adds no
	// history point.
	if unchanged {
		s.scrapesSkipped.Inc()
		s.scrapeDuration.Observe(time.Since(start).Seconds())
		return
	}

	rec := db.NewSnapshotRecord(dash, fmt.Sprintf("%016x", hash))
	if err := s.dbProvider.InsertSnapshot(runCtx, rec); err != nil {
		slog.Error("scraper: persist snapshot", "err", err)
		s.scrapeFailure.Inc()
		s.scrapeDuration.Observe(time.Since(start).Seconds())
		return
	}

	slog.Debug("scraper: snapshot stored", "families", len(snap.Families), "hash", rec.Hash)
	s.scrapeSuccess.Inc()
	s.scrapeDuration.Observe(time.Since(start).Seconds())
}

// Snapshot fetches and parses the upstream exposition without touching the
// cache or the store. Used for on-demand, instance-filtered dashboard reads.
func (s *Scraper) Snapshot(ctx context.Context) (*metrics.Snapshot, error) {
	body, err := s.client.FetchMetrics(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.Parse(bytes.NewReader(body))
}
