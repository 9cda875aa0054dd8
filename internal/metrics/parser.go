package metrics

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Parse reads Prometheus text exposition format and returns a Snapshot.
// Summaries are folded into plain samples per quantile; histograms keep one
// HistogramSeries per label set with quantiles estimated from the buckets.
func Parse(r io.Reader) (*Snapshot, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse exposition text: %w", err)
	}

	snap := &Snapshot{
		ScrapedAt: time.Now().UTC(),
		Families:  make(map[string]*Family, len(families)),
	}

	for name, mf := range families {
		fam := &Family{
			Name: name,
			Type: metricTypeName(mf.GetType()),
			Help: mf.GetHelp(),
		}

		for _, m := range mf.GetMetric() {
			labels := labelMap(m)

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				fam.Samples = append(fam.Samples, Sample{
					Name:   name,
					Labels: labels,
					Value:  m.GetCounter().GetValue(),
				})
			case dto.MetricType_GAUGE:
				fam.Samples = append(fam.Samples, Sample{
					Name:   name,
					Labels: labels,
					Value:  m.GetGauge().GetValue(),
				})
			case dto.MetricType_HISTOGRAM:
				fam.Histograms = append(fam.Histograms, histogramSeries(labels, m.GetHistogram()))
			case dto.MetricType_SUMMARY:
				s := m.GetSummary()
				for _, q := range s.GetQuantile() {
					ql := copyLabels(labels)
					ql[model.QuantileLabel] = fmt.Sprintf("%g", q.GetQuantile())
					fam.Samples = append(fam.Samples, Sample{Name: name, Labels: ql, Value: q.GetValue()})
				}
			default:
				if m.GetUntyped() != nil {
					fam.Samples = append(fam.Samples, Sample{
						Name:   name,
						Labels: labels,
						Value:  m.GetUntyped().GetValue(),
					})
				}
			}
		}

		snap.Families[name] = fam
	}

	return snap, nil
}

func histogramSeries(labels map[string]string, h *dto.Histogram) HistogramSeries {
	buckets := make([]bucket, 0, len(h.GetBucket()))
	for _, b := range h.GetBucket() {
		buckets = append(buckets, bucket{
			upperBound: b.GetUpperBound(),
			count:      float64(b.GetCumulativeCount()),
		})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].upperBound < buckets[j].upperBound })

	count := float64(h.GetSampleCount())
	return HistogramSeries{
		Labels: labels,
		Sum:    h.GetSampleSum(),
		Count:  count,
		P50:    estimateQuantile(buckets, count, 0.50),
		P95:    estimateQuantile(buckets, count, 0.95),
		P99:    estimateQuantile(buckets, count, 0.99),
	}
}

type bucket struct {
	upperBound float64
	count      float64
}

// estimateQuantile interpolates a quantile from cumulative histogram buckets,
// matching the histogram_quantile estimation: linear within the bucket, the
// previous finite bound for the +Inf bucket.
func estimateQuantile(buckets []bucket, count, q float64) float64 {
	if count == 0 || len(buckets) == 0 {
		return 0
	}

	rank := q * count
	prevBound := 0.0
	prevCount := 0.0
	for _, b := range buckets {
		if b.count >= rank {
			if math.IsInf(b.upperBound, 1) {
				return prevBound
			}
			inBucket := b.count - prevCount
			if inBucket <= 0 {
				return b.upperBound
			}
			return prevBound + (b.upperBound-prevBound)*((rank-prevCount)/inBucket)
		}
		if !math.IsInf(b.upperBound, 1) {
			prevBound = b.upperBound
		}
		prevCount = b.count
	}
	return prevBound
}

func metricTypeName(mt dto.MetricType) string {
	switch mt {
	case dto.MetricType_COUNTER:
		return "counter"
	case dto.MetricType_GAUGE:
		return "gauge"
	case dto.MetricType_HISTOGRAM:
		return "histogram"
	case dto.MetricType_SUMMARY:
		return "summary"
	default:
		return "untyped"
	}
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	return out
}
