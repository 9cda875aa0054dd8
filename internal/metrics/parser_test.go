package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const expositionFixture = `# HELP http_requests_total Total HTTP requests processed.
# TYPE http_requests_total counter
http_requests_total{method="GET",path="/health",status="200"} 10
http_requests_total{method="POST",path="/instances",status="500"} 2
# HELP events_buffered Events waiting in the buffer.
# TYPE events_buffered gauge
events_buffered 7
# HELP http_request_duration_seconds Duration of HTTP requests in seconds.
# TYPE http_request_duration_seconds histogram
http_request_duration_seconds_bucket{le="0.1"} 2
http_request_duration_seconds_bucket{le="0.5"} 4
http_request_duration_seconds_bucket{le="+Inf"} 4
http_request_duration_seconds_sum 0.6
http_request_duration_seconds_count 4
`

func TestParseCountersAndGauges(t *testing.T) {
	snap, err := Parse(strings.NewReader(expositionFixture))
	require.NoError(t, err)

	fam, ok := snap.Families["http_requests_total"]
	require.True(t, ok)
	assert.Equal(t, "counter", fam.Type)
	assert.Len(t, fam.Samples, 2)

	var total float64
	for _, s := range fam.Samples {
		total += s.Value
	}
	assert.Equal(t, 12.0, total)

	gauge, ok := snap.Families["events_buffered"]
	require.True(t, ok)
	assert.Equal(t, "gauge", gauge.Type)
	require.Len(t, gauge.Samples, 1)
	assert.Equal(t, 7.0, gauge.Samples[0].Value)
}

func TestParseHistogramQuantiles(t *testing.T) {
	snap, err := Parse(strings.NewReader(expositionFixture))
	require.NoError(t, err)

	fam, ok := snap.Families["http_request_duration_seconds"]
	require.True(t, ok)
	assert.Equal(t, "histogram", fam.Type)
	assert.Empty(t, fam.Samples)
	require.Len(t, fam.Histograms, 1)

	h := fam.Histograms[0]
	assert.Equal(t, 0.6, h.Sum)
	assert.Equal(t, 4.0, h.Count)
	// rank 2 lands exactly on the 0.1 bucket boundary
	assert.InDelta(t, 0.1, h.P50, 1e-9)
	// rank 3.8 interpolates into the (0.1, 0.5] bucket
	assert.InDelta(t, 0.46, h.P95, 1e-9)
	assert.InDelta(t, 0.492, h.P99, 1e-9)
}

func TestParseSummaryQuantilesAsSamples(t *testing.T) {
	input := `# TYPE rpc_duration_seconds summary
rpc_duration_seconds{quantile="0.5"} 0.05
rpc_duration_seconds{quantile="0.99"} 0.3
rpc_duration_seconds_sum 1.2
rpc_duration_seconds_count 10
`
	snap, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	fam, ok := snap.Families["rpc_duration_seconds"]
	require.True(t, ok)
	assert.Equal(t, "summary", fam.Type)
	require.Len(t, fam.Samples, 2)
	assert.Equal(t, "0.5", fam.Samples[0].Labels["quantile"])
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("{not exposition format"))
	assert.Error(t, err)
}

func TestEstimateQuantileEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, estimateQuantile(nil, 0, 0.5))

	// all observations in the +Inf bucket fall back to the last finite bound
	buckets := []bucket{{upperBound: 1, count: 0}, {upperBound: math.Inf(1), count: 10}}
	assert.Equal(t, 1.0, estimateQuantile(buckets, 10, 0.99))
}
