package metrics

import "time"

// Snapshot is a single parse of an exposition payload. It is rebuilt on every
// scrape and never mutated afterwards.
type Snapshot struct {
	ScrapedAt time.Time
	Families  map[string]*Family
}

// Family groups samples sharing a metric name.
type Family struct {
	Name    string
	Type    string
	Help    string
	Samples []Sample
	// Histograms carries one entry per label set for histogram families.
	// Plain samples are not emitted for histogram series.
	Histograms []HistogramSeries
}

// Sample is a single counter, gauge or untyped observation.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// HistogramSeries is one histogram label set with quantiles estimated from
// its buckets at parse time.
type HistogramSeries struct {
	Labels map[string]string
	Sum    float64
	Count  float64
	P50    float64
	P95    float64
	P99    float64
}

// Latency aggregates a histogram family into display units (milliseconds).
type Latency struct {
	AvgMs float64 `json:"avgMs"`
	P50Ms float64 `json:"p50Ms"`
	P95Ms float64 `json:"p95Ms"`
	P99Ms float64 `json:"p99Ms"`
}

// Dashboard is the console view-model computed from a Snapshot.
type Dashboard struct {
	ScrapedAt  time.Time `json:"scrapedAt"`
	InstanceID string    `json:"instanceId,omitempty"`
	// Stale marks a dashboard recovered from the store because no fresh
	// scrape was available.
	Stale bool `json:"stale,omitempty"`

	HTTP         HTTPMetrics         `json:"http"`
	Events       EventMetrics        `json:"events"`
	MessageQueue MessageQueueMetrics `json:"messageQueue"`
	Media        MediaMetrics        `json:"media"`
	System       SystemMetrics       `json:"system"`
	Workers      WorkerMetrics       `json:"workers"`
	Transport    TransportMetrics    `json:"transport"`
	StatusCache  StatusCacheMetrics  `json:"statusCache"`
	Handlers     HandlerMetrics      `json:"handlers"`
}

type HTTPMetrics struct {
	Requests    float64                   `json:"requests"`
	Errors      float64                   `json:"errors"`
	SuccessRate float64                   `json:"successRate"`
	Latency     Latency                   `json:"latency"`
	ByStatus    map[string]float64        `json:"byStatus"`
	ByPath      map[string]*HTTPPathStats `json:"byPath"`
}

type HTTPPathStats struct {
	Requests float64 `json:"requests"`
	Errors   float64 `json:"errors"`
}

type EventMetrics struct {
	Captured            float64                        `json:"captured"`
	Dropped             float64                        `json:"dropped"`
	Buffered            float64                        `json:"buffered"`
	Delivered           float64                        `json:"delivered"`
	DeliveryFailed      float64                        `json:"deliveryFailed"`
	DeliverySuccessRate float64                        `json:"deliverySuccessRate"`
	ByType              map[string]*EventTypeStats     `json:"byType"`
	ByInstance          map[string]*EventInstanceStats `json:"byInstance"`
}

type EventTypeStats struct {
	Captured float64 `json:"captured"`
	Dropped  float64 `json:"dropped"`
}

type EventInstanceStats struct {
	Captured  float64 `json:"captured"`
	Dropped   float64 `json:"dropped"`
	Delivered float64 `json:"delivered"`
}

type MessageQueueMetrics struct {
	Published      float64                 `json:"published"`
	PublishErrors  float64                 `json:"publishErrors"`
	Consumed       float64                 `json:"consumed"`
	ConsumeErrors  float64                 `json:"consumeErrors"`
	Acked          float64                 `json:"acked"`
	Nacked         float64                 `json:"nacked"`
	DeadLettered   float64                 `json:"deadLettered"`
	StreamMessages float64                 `json:"streamMessages"`
	StreamBytes    float64                 `json:"streamBytes"`
	PublishLatency Latency                 `json:"publishLatency"`
	ConsumeLatency Latency                 `json:"consumeLatency"`
	ByStream       map[string]*StreamStats `json:"byStream"`
}

type StreamStats struct {
	Published float64 `json:"published"`
	Consumed  float64 `json:"consumed"`
	Messages  float64 `json:"messages"`
	Bytes     float64 `json:"bytes"`
}

type MediaMetrics struct {
	Processed float64                    `json:"processed"`
	Failed    float64                    `json:"failed"`
	Bytes     float64                    `json:"bytes"`
	ByType    map[string]*MediaTypeStats `json:"byType"`
}

type MediaTypeStats struct {
	Processed float64 `json:"processed"`
	Failed    float64 `json:"failed"`
	Bytes     float64 `json:"bytes"`
}

type SystemMetrics struct {
	Goroutines     float64 `json:"goroutines"`
	MemoryBytes    float64 `json:"memoryBytes"`
	CPUSeconds     float64 `json:"cpuSeconds"`
	UptimeSeconds  float64 `json:"uptimeSeconds"`
	WebhookBacklog float64 `json:"webhookBacklog"`
}

type WorkerMetrics struct {
	Assignments     float64                         `json:"assignments"`
	Releases        float64                         `json:"releases"`
	Swaps           float64                         `json:"swaps"`
	PoolSize        float64                         `json:"poolSize"`
	Healing         float64                         `json:"healing"`
	HealingDuration Latency                         `json:"healingDuration"`
	ByInstance      map[string]*WorkerInstanceStats `json:"byInstance"`
}

type WorkerInstanceStats struct {
	Healing float64 `json:"healing"`
}

type TransportMetrics struct {
	Connected         bool                         `json:"connected"`
	Reconnections     float64                      `json:"reconnections"`
	Disconnections    float64                      `json:"disconnections"`
	ConnectionErrors  float64                      `json:"connectionErrors"`
	ProxyHealthChecks float64                      `json:"proxyHealthChecks"`
	ProxyHealthy      float64                      `json:"proxyHealthy"`
	ProxySwaps        float64                      `json:"proxySwaps"`
	ByInstance        map[string]*ProxyHealthStats `json:"byInstance"`
}

type ProxyHealthStats struct {
	Healthy      bool    `json:"healthy"`
	HealthChecks float64 `json:"healthChecks"`
	Swaps        float64 `json:"swaps"`
}

type StatusCacheMetrics struct {
	Hits      float64 `json:"hits"`
	Misses    float64 `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Entries   float64 `json:"entries"`
	Evictions float64 `json:"evictions"`
}

type HandlerMetrics struct {
	Processed   float64                      `json:"processed"`
	Failed      float64                      `json:"failed"`
	SuccessRate float64                      `json:"successRate"`
	Latency     Latency                      `json:"latency"`
	ByHandler   map[string]*HandlerTypeStats `json:"byHandler"`
}

type HandlerTypeStats struct {
	Processed float64 `json:"processed"`
	Failed    float64 `json:"failed"`
}
