package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/metrics"
)

func newTestProvider(t *testing.T) Provider {
	t.Helper()
	config.DefaultConfig.Database.SQLite.DatabasePath = filepath.Join(t.TempDir(), "console.db")
	provider, err := GetDbProvider(context.Background(), SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func testDashboard(ts time.Time, captured float64) *metrics.Dashboard {
	d := &metrics.Dashboard{ScrapedAt: ts}
	d.Events.Captured = captured
	d.Events.Buffered = 2
	d.MessageQueue.Published = 7
	d.HTTP.Requests = 100
	return d
}

func TestSnapshotRoundtrip(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	_, err := provider.LatestSnapshot(ctx)
	assert.True(t, IsNoResults(err))

	ts := time.Now().UTC().Truncate(time.Millisecond)
	rec := NewSnapshotRecord(testDashboard(ts, 15), "abc123")
	require.NoError(t, provider.InsertSnapshot(ctx, rec))

	got, err := provider.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.Hash)
	assert.Equal(t, ts, got.TS)
	assert.Equal(t, 15.0, got.EventsCaptured)
	require.NotNil(t, got.Dashboard)
	assert.Equal(t, 15.0, got.Dashboard.Events.Captured)
}

func TestLatestSnapshotReturnsNewest(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()
	require.NoError(t, provider.InsertSnapshot(ctx, NewSnapshotRecord(testDashboard(older, 1), "old")))
	require.NoError(t, provider.InsertSnapshot(ctx, NewSnapshotRecord(testDashboard(newer, 2), "new")))

	got, err := provider.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Hash)
}

func TestListSnapshotsWindow(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, provider.InsertSnapshot(ctx, NewSnapshotRecord(testDashboard(ts, float64(i)), "h")))
	}

	points, err := provider.ListSnapshots(ctx, base.Add(time.Minute), base.Add(3*time.Minute), 100)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 1.0, points[0].EventsCaptured)
	assert.Equal(t, 3.0, points[2].EventsCaptured)

	limited, err := provider.ListSnapshots(ctx, base, base.Add(time.Hour), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteSnapshotsBefore(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()
	require.NoError(t, provider.InsertSnapshot(ctx, NewSnapshotRecord(testDashboard(old, 1), "old")))
	require.NoError(t, provider.InsertSnapshot(ctx, NewSnapshotRecord(testDashboard(fresh, 2), "new")))

	deleted, err := provider.DeleteSnapshotsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := provider.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Hash)
}

func TestContactMessages(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	msg := ContactMessage{
		ID:        uuid.New(),
		Name:      "Ada",
		Email:     "ada@example.com",
		Subject:   "pricing",
		Body:      "how much for 50 instances?",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, provider.InsertContactMessage(ctx, msg))

	page, err := provider.ListContactMessages(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	msgs, ok := page.Data.([]ContactMessage)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.Equal(t, msg.Body, msgs[0].Body)

	deleted, err := provider.DeleteContactMessagesBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestPostgresBindRewritesPlaceholders(t *testing.T) {
	assert.Equal(t, "SELECT $1, $2", postgresBind("SELECT ?, ?"))
	assert.Equal(t, "no placeholders", postgresBind("no placeholders"))
}

func TestGetDbProviderUnsupported(t *testing.T) {
	_, err := GetDbProvider(context.Background(), DatabaseProvider("oracle"))
	assert.Error(t, err)
}
