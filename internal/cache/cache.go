package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/funnelchat/console/internal/metrics"
)

// DashboardCache keeps the most recent dashboard per instance filter so reads
// do not have to wait for a scrape. Implementations must be safe for
// concurrent use. A miss is (nil, nil), not an error.
type DashboardCache interface {
	Get(ctx context.Context, instanceID string) (*metrics.Dashboard, error)
	Set(ctx context.Context, instanceID string, d *metrics.Dashboard, ttl time.Duration) error
	Close() error
}

// redisDashboardCache is a rueidis-backed DashboardCache with a dedicated
// "dashboard:" key prefix.
type redisDashboardCache struct {
	client rueidis.Client
}

func NewRedisCache(addr, username, password string, db int) (DashboardCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	opts := rueidis.ClientOption{
		InitAddress: []string{addr},
	}
	if username != "" {
		opts.Username = username
	}
	if password != "" {
		opts.Password = password
	}
	if db > 0 {
		opts.SelectDB = db
	}
	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client for dashboard cache: %w", err)
	}
	return &redisDashboardCache{client: client}, nil
}

func (c *redisDashboardCache) key(instanceID string) string {
	if instanceID == "" {
		return "dashboard:_all"
	}
	return fmt.Sprintf("dashboard:%s", instanceID)
}

func (c *redisDashboardCache) Get(ctx context.Context, instanceID string) (*metrics.Dashboard, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(c.key(instanceID)).Build())
	raw, err := resp.AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached dashboard: %w", err)
	}

	var d metrics.Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode cached dashboard: %w", err)
	}
	return &d, nil
}

func (c *redisDashboardCache) Set(ctx context.Context, instanceID string, d *metrics.Dashboard, ttl time.Duration) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}

	ttlSeconds := int64(ttl.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 30
	}

	cmd := c.client.B().Set().Key(c.key(instanceID)).Value(rueidis.BinaryString(raw)).ExSeconds(ttlSeconds).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("store cached dashboard: %w", err)
	}
	return nil
}

func (c *redisDashboardCache) Close() error {
	c.client.Close()
	return nil
}

// noopCache is used when no redis address is configured; every read is a miss.
type noopCache struct{}

func NewNoopCache() DashboardCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) (*metrics.Dashboard, error) {
	return nil, nil
}

func (noopCache) Set(context.Context, string, *metrics.Dashboard, time.Duration) error {
	return nil
}

func (noopCache) Close() error { return nil }
