package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelchat/console/internal/cache"
	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/db"
	"github.com/funnelchat/console/internal/metrics"
	"github.com/funnelchat/console/internal/upstream"
)

type recordingCache struct {
	mu   sync.Mutex
	sets int
	last *metrics.Dashboard
}

func (c *recordingCache) Get(context.Context, string) (*metrics.Dashboard, error) {
	return nil, nil
}

func (c *recordingCache) Set(_ context.Context, _ string, d *metrics.Dashboard, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.last = d
	return nil
}

func (c *recordingCache) Close() error { return nil }

func newTestScraper(t *testing.T, exposition *string) (*Scraper, db.Provider, *recordingCache) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, *exposition)
	}))
	t.Cleanup(srv.Close)

	client, err := upstream.New(srv.URL)
	require.NoError(t, err)

	config.DefaultConfig.Database.SQLite.DatabasePath = filepath.Join(t.TempDir(), "console.db")
	provider, err := db.GetDbProvider(context.Background(), db.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	rc := &recordingCache{}
	cfg := &config.Config{}
	cfg.Scrape.Interval = time.Minute
	cfg.Scrape.Timeout = 10 * time.Second
	cfg.Scrape.CacheTTL = 30 * time.Second

	s, err := New(client, provider, rc, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	return s, provider, rc
}

func countSnapshots(t *testing.T, provider db.Provider) int {
	t.Helper()
	points, err := provider.ListSnapshots(context.Background(),
		time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour), 1000)
	require.NoError(t, err)
	return len(points)
}

func TestRunOncePersistsAndCaches(t *testing.T) {
	exposition := "# TYPE funnelchat_api_events_captured_total counter\nfunnelchat_api_events_captured_total 42\n"
	s, provider, rc := newTestScraper(t, &exposition)

	s.runOnce(context.Background())

	assert.Equal(t, 1, countSnapshots(t, provider))
	require.NotNil(t, rc.last)
	assert.Equal(t, 42.0, rc.last.Events.Captured)

	rec, err := provider.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, rec.EventsCaptured)
	assert.NotEmpty(t, rec.Hash)
}

func TestRunOnceSkipsUnchangedExposition(t *testing.T) {
	exposition := "funnelchat_api_events_captured_total 42\n"
	s, provider, rc := newTestScraper(t, &exposition)

	s.runOnce(context.Background())
	s.runOnce(context.Background())
	assert.Equal(t, 1, countSnapshots(t, provider))
	// The cache is refreshed on every scrape, even deduplicated ones.
	assert.Equal(t, 2, rc.sets)

	exposition = "funnelchat_api_events_captured_total 43\n"
	s.runOnce(context.Background())
	assert.Equal(t, 2, countSnapshots(t, provider))
}

func TestRunOnceToleratesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := upstream.New(srv.URL)
	require.NoError(t, err)

	config.DefaultConfig.Database.SQLite.DatabasePath = filepath.Join(t.TempDir(), "console.db")
	provider, err := db.GetDbProvider(context.Background(), db.SQLite)
	require.NoError(t, err)
	defer func() { _ = provider.Close() }()

	cfg := &config.Config{}
	cfg.Scrape.Interval = time.Minute
	cfg.Scrape.Timeout = time.Second
	cfg.Scrape.CacheTTL = time.Second

	s, err := New(client, provider, cache.NewNoopCache(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	s.runOnce(context.Background())
	assert.Equal(t, 0, countSnapshots(t, provider))
}

func TestSnapshotParsesExposition(t *testing.T) {
	exposition := "# TYPE funnelchat_api_nats_publish_total counter\nfunnelchat_api_nats_publish_total 7\n"
	s, _, _ := newTestScraper(t, &exposition)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Families, 1)
}

func TestNewValidatesConfig(t *testing.T) {
	client, err := upstream.New("http://localhost:1")
	require.NoError(t, err)

	cfg := &config.Config{}
	_, err = New(client, nil, cache.NewNoopCache(), cfg, prometheus.NewRegistry())
	assert.Error(t, err)

	_, err = New(client, nil, cache.NewNoopCache(), nil, prometheus.NewRegistry())
	assert.Error(t, err)
}
