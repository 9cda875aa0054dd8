package retention

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/db"
)

type fakeProvider struct {
	snapshotCalls []time.Time
	contactCalls  []time.Time
	snapshotErr   error
	contactErr    error
	deleted       int64
}

func (f *fakeProvider) DeleteSnapshotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.snapshotCalls = append(f.snapshotCalls, cutoff)
	return f.deleted, f.snapshotErr
}

func (f *fakeProvider) DeleteContactMessagesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.contactCalls = append(f.contactCalls, cutoff)
	return f.deleted, f.contactErr
}

func (f *fakeProvider) WithDB(func(*sql.DB)) {}
func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) InsertSnapshot(context.Context, db.SnapshotRecord) error { return nil }
func (f *fakeProvider) LatestSnapshot(context.Context) (*db.SnapshotRecord, error) {
	return nil, db.ErrNoResults
}
func (f *fakeProvider) ListSnapshots(context.Context, time.Time, time.Time, int) ([]db.SnapshotPoint, error) {
	return nil, nil
}
func (f *fakeProvider) InsertContactMessage(context.Context, db.ContactMessage) error { return nil }
func (f *fakeProvider) ListContactMessages(context.Context, int, int) (*db.PagedResult, error) {
	return nil, nil
}
func (f *fakeProvider) Close() error { return nil }

func retentionConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.Interval = time.Hour
	cfg.Retention.RunTimeout = 5 * time.Minute
	cfg.Retention.SnapshotsMaxAge = 14 * 24 * time.Hour
	cfg.Retention.ContactMaxAge = 90 * 24 * time.Hour
	return cfg
}

func TestNewWorker(t *testing.T) {
	cfg := retentionConfig()

	w, err := NewWorker(&fakeProvider{}, cfg, prometheus.NewRegistry())
	assert.NoError(t, err)
	assert.NotNil(t, w)
	assert.Equal(t, cfg.Retention.Interval, w.interval)
	assert.Equal(t, cfg.Retention.RunTimeout, w.runTimeout)
	assert.Equal(t, cfg.Retention.SnapshotsMaxAge, w.snapshotsMaxAge)
	assert.Equal(t, cfg.Retention.ContactMaxAge, w.contactMaxAge)
}

func TestNewWorker_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"zero interval", func(c *config.Config) { c.Retention.Interval = 0 }, "interval must be positive"},
		{"negative interval", func(c *config.Config) { c.Retention.Interval = -time.Hour }, "interval must be positive"},
		{"zero run timeout", func(c *config.Config) { c.Retention.RunTimeout = 0 }, "run_timeout must be positive"},
		{"zero snapshots max age", func(c *config.Config) { c.Retention.SnapshotsMaxAge = 0 }, "snapshots_max_age must be positive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := retentionConfig()
			tc.mutate(cfg)

			w, err := NewWorker(&fakeProvider{}, cfg, prometheus.NewRegistry())
			assert.Error(t, err)
			assert.Nil(t, w)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}

	_, err := NewWorker(&fakeProvider{}, nil, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestWorker_runOnce(t *testing.T) {
	fakeProv := &fakeProvider{deleted: 42}

	w := &Worker{
		dbProvider:      fakeProv,
		interval:        time.Hour,
		runTimeout:      5 * time.Minute,
		snapshotsMaxAge: 14 * 24 * time.Hour,
		contactMaxAge:   90 * 24 * time.Hour,
		runDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration"}, []string{"status"}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	w.runOnce(ctx)

	assert.Len(t, fakeProv.snapshotCalls, 1)
	assert.Len(t, fakeProv.contactCalls, 1)

	actualCutoff := fakeProv.snapshotCalls[0]
	expectedCutoff := time.Now().UTC().Add(-w.snapshotsMaxAge)
	diff := actualCutoff.Sub(expectedCutoff)
	if diff < 0 {
		diff = -diff
	}
	assert.Less(t, diff, time.Second)
}

func TestWorker_runOnce_SnapshotErrorSkipsContactCleanup(t *testing.T) {
	fakeProv := &fakeProvider{snapshotErr: errors.New("database error")}

	w := &Worker{
		dbProvider:      fakeProv,
		interval:        time.Hour,
		runTimeout:      5 * time.Minute,
		snapshotsMaxAge: 14 * 24 * time.Hour,
		contactMaxAge:   90 * 24 * time.Hour,
		runDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration"}, []string{"status"}),
	}

	w.runOnce(context.Background())

	assert.Len(t, fakeProv.snapshotCalls, 1)
	assert.Empty(t, fakeProv.contactCalls)
}

func TestWorker_runOnce_ContactCleanupDisabled(t *testing.T) {
	fakeProv := &fakeProvider{}

	w := &Worker{
		dbProvider:      fakeProv,
		interval:        time.Hour,
		runTimeout:      5 * time.Minute,
		snapshotsMaxAge: 14 * 24 * time.Hour,
		contactMaxAge:   0,
		runDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration"}, []string{"status"}),
	}

	w.runOnce(context.Background())

	assert.Len(t, fakeProv.snapshotCalls, 1)
	assert.Empty(t, fakeProv.contactCalls)
}

func TestWorker_Run_HandlesSmallInterval(t *testing.T) {
	fakeProv := &fakeProvider{}

	w := &Worker{
		dbProvider:      fakeProv,
		interval:        4 * time.Nanosecond,
		runTimeout:      5 * time.Minute,
		snapshotsMaxAge: 14 * 24 * time.Hour,
		runDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration"}, []string{"status"}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Run should have exited within timeout")
	}

	assert.GreaterOrEqual(t, len(fakeProv.snapshotCalls), 1)
}
