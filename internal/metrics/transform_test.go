package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, input string) *Snapshot {
	t.Helper()
	snap, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	return snap
}

func TestEventTotalsAndInstanceFilter(t *testing.T) {
	snap := parseFixture(t, `# TYPE events_captured_total counter
events_captured_total{instance_id="a",event_type="message"} 10
events_captured_total{instance_id="b",event_type="message"} 5
`)

	all := ToDashboard(snap, Options{})
	assert.Equal(t, 15.0, all.Events.Captured)
	require.Contains(t, all.Events.ByInstance, "a")
	assert.Equal(t, 10.0, all.Events.ByInstance["a"].Captured)
	assert.Equal(t, 5.0, all.Events.ByInstance["b"].Captured)

	filtered := ToDashboard(snap, Options{InstanceID: "a"})
	assert.Equal(t, 10.0, filtered.Events.Captured)
	assert.NotContains(t, filtered.Events.ByInstance, "b")
}

func TestByInstanceSumsMatchTotal(t *testing.T) {
	snap := parseFixture(t, `# TYPE events_captured_total counter
events_captured_total{instance_id="a",event_type="message"} 3
events_captured_total{instance_id="b",event_type="receipt"} 4
events_captured_total{instance_id="c",event_type="message"} 5
`)

	d := ToDashboard(snap, Options{})
	var sum float64
	for _, is := range d.Events.ByInstance {
		sum += is.Captured
	}
	assert.Equal(t, d.Events.Captured, sum)

	sum = 0
	for _, ts := range d.Events.ByType {
		sum += ts.Captured
	}
	assert.Equal(t, d.Events.Captured, sum)
}

func TestNamespacePrefixedFamiliesResolve(t *testing.T) {
	snap := parseFixture(t, `# TYPE funnelchat_api_events_captured_total counter
funnelchat_api_events_captured_total{instance_id="a",event_type="message"} 8
# TYPE funnelchat_api_http_requests_total counter
funnelchat_api_http_requests_total{method="GET",path="/health",status="200"} 3
`)

	d := ToDashboard(snap, Options{})
	assert.Equal(t, 8.0, d.Events.Captured)
	assert.Equal(t, 3.0, d.HTTP.Requests)
}

func TestHistogramAggregation(t *testing.T) {
	snap := &Snapshot{
		Families: map[string]*Family{
			"http_request_duration_seconds": {
				Name: "http_request_duration_seconds",
				Type: "histogram",
				Histograms: []HistogramSeries{
					{Labels: map[string]string{"path": "/a"}, Sum: 1, Count: 2, P50: 0.4, P95: 0.8, P99: 0.9},
					{Labels: map[string]string{"path": "/b"}, Sum: 3, Count: 2, P50: 0.6, P95: 1.2, P99: 1.5},
				},
			},
		},
	}

	d := ToDashboard(snap, Options{})
	// (1+3)/(2+2) seconds = 1000ms
	assert.InDelta(t, 1000.0, d.HTTP.Latency.AvgMs, 1e-9)
	// arithmetic mean of per-series estimates
	assert.InDelta(t, 500.0, d.HTTP.Latency.P50Ms, 1e-9)
	assert.InDelta(t, 1000.0, d.HTTP.Latency.P95Ms, 1e-9)
	assert.InDelta(t, 1200.0, d.HTTP.Latency.P99Ms, 1e-9)
}

func TestHitRateBoundsAndDefaults(t *testing.T) {
	empty := ToDashboard(&Snapshot{Families: map[string]*Family{}}, Options{})
	assert.Equal(t, 0.0, empty.StatusCache.HitRate)
	assert.Equal(t, 100.0, empty.Events.DeliverySuccessRate)
	assert.Equal(t, 100.0, empty.HTTP.SuccessRate)
	assert.Equal(t, 100.0, empty.Handlers.SuccessRate)

	snap := parseFixture(t, `# TYPE status_cache_hits_total counter
status_cache_hits_total{instance_id="a"} 30
# TYPE status_cache_misses_total counter
status_cache_misses_total{instance_id="a"} 10
`)
	d := ToDashboard(snap, Options{})
	assert.Equal(t, 75.0, d.StatusCache.HitRate)
	assert.GreaterOrEqual(t, d.StatusCache.HitRate, 0.0)
	assert.LessOrEqual(t, d.StatusCache.HitRate, 100.0)
}

func TestInstanceFilterIsMonotonic(t *testing.T) {
	snap := parseFixture(t, `# TYPE events_captured_total counter
events_captured_total{instance_id="a",event_type="message"} 10
events_captured_total{instance_id="b",event_type="message"} 5
# TYPE proxy_messages_dlq_total counter
proxy_messages_dlq_total{instance_id="a"} 1
proxy_messages_dlq_total{instance_id="b"} 2
# TYPE status_cache_hits_total counter
status_cache_hits_total{instance_id="a"} 4
status_cache_hits_total{instance_id="b"} 6
# TYPE go_goroutines gauge
go_goroutines 42
`)

	all := ToDashboard(snap, Options{})
	filtered := ToDashboard(snap, Options{InstanceID: "a"})

	assert.LessOrEqual(t, filtered.Events.Captured, all.Events.Captured)
	assert.LessOrEqual(t, filtered.MessageQueue.DeadLettered, all.MessageQueue.DeadLettered)
	assert.LessOrEqual(t, filtered.StatusCache.Hits, all.StatusCache.Hits)
	// families without an instance_id label pass through the filter unchanged
	assert.Equal(t, all.System.Goroutines, filtered.System.Goroutines)
}

func TestMissingFamiliesLeaveZeros(t *testing.T) {
	d := ToDashboard(&Snapshot{Families: map[string]*Family{}}, Options{})
	assert.Zero(t, d.Events.Captured)
	assert.Zero(t, d.MessageQueue.Published)
	assert.Zero(t, d.HTTP.Latency.AvgMs)
	assert.Empty(t, d.Events.ByInstance)
	assert.False(t, d.Transport.Connected)
}

func TestHTTPErrorsFromStatusLabel(t *testing.T) {
	snap := parseFixture(t, `# TYPE http_requests_total counter
http_requests_total{method="GET",path="/health",status="200"} 90
http_requests_total{method="POST",path="/instances",status="500"} 10
`)

	d := ToDashboard(snap, Options{})
	assert.Equal(t, 100.0, d.HTTP.Requests)
	assert.Equal(t, 10.0, d.HTTP.Errors)
	assert.Equal(t, 90.0, d.HTTP.SuccessRate)
	require.Contains(t, d.HTTP.ByPath, "/instances")
	assert.Equal(t, 10.0, d.HTTP.ByPath["/instances"].Errors)
}

func TestTransportAndWorkersCategories(t *testing.T) {
	snap := parseFixture(t, `# TYPE nats_connection_status gauge
nats_connection_status 1
# TYPE nats_reconnection_total counter
nats_reconnection_total 3
# TYPE proxy_health_status gauge
proxy_health_status{instance_id="a"} 1
proxy_health_status{instance_id="b"} 0
# TYPE proxy_pool_healing_total counter
proxy_pool_healing_total{instance_id="a",status="success"} 2
# TYPE proxy_pool_size gauge
proxy_pool_size{provider_id="webshare",status="available"} 12
`)

	d := ToDashboard(snap, Options{})
	assert.True(t, d.Transport.Connected)
	assert.Equal(t, 3.0, d.Transport.Reconnections)
	assert.Equal(t, 1.0, d.Transport.ProxyHealthy)
	assert.Equal(t, 2.0, d.Workers.Healing)
	assert.Equal(t, 12.0, d.Workers.PoolSize)
	require.Contains(t, d.Workers.ByInstance, "a")
}
