package metrics

// namespace is the exporter prefix used by the funnelchat API. Older backend
// builds expose unprefixed names, so lookups try both.
const namespace = "funnelchat_api"

// Options narrows a transformation to one instance. An empty InstanceID
// aggregates across all instances.
type Options struct {
	InstanceID string
}

// ToDashboard reshapes a Snapshot into the console view-model. Missing
// families leave their category at zero values; the function never fails.
func ToDashboard(snap *Snapshot, opts Options) *Dashboard {
	t := &transformer{snap: snap, opts: opts}

	return &Dashboard{
		ScrapedAt:    snap.ScrapedAt,
		InstanceID:   opts.InstanceID,
		HTTP:         t.http(),
		Events:       t.events(),
		MessageQueue: t.messageQueue(),
		Media:        t.media(),
		System:       t.system(),
		Workers:      t.workers(),
		Transport:    t.transport(),
		StatusCache:  t.statusCache(),
		Handlers:     t.handlers(),
	}
}

type transformer struct {
	snap *Snapshot
	opts Options
}

// family resolves a metric name against the exporter's naming variants:
// bare, namespaced, and counter names missing or carrying the _total suffix.
func (t *transformer) family(name string) *Family {
	variants := []string{
		name,
		namespace + "_" + name,
		name + "_total",
		namespace + "_" + name + "_total",
	}
	for _, v := range variants {
		if fam, ok := t.snap.Families[v]; ok {
			return fam
		}
	}
	return nil
}

// match reports whether a label set passes the instance filter. Families
// without an instance_id label are not instance-scoped and always pass.
func (t *transformer) match(labels map[string]string) bool {
	if t.opts.InstanceID == "" {
		return true
	}
	id, ok := labels["instance_id"]
	if !ok {
		return true
	}
	return id == t.opts.InstanceID
}

func (t *transformer) sum(name string) float64 {
	fam := t.family(name)
	if fam == nil {
		return 0
	}
	var total float64
	for _, s := range fam.Samples {
		if t.match(s.Labels) {
			total += s.Value
		}
	}
	return total
}

// sumWhere sums samples whose label matches the given value.
func (t *transformer) sumWhere(name, label, value string) float64 {
	fam := t.family(name)
	if fam == nil {
		return 0
	}
	var total float64
	for _, s := range fam.Samples {
		if t.match(s.Labels) && s.Labels[label] == value {
			total += s.Value
		}
	}
	return total
}

// sumBy accumulates per-label-value totals alongside the aggregate.
func (t *transformer) sumBy(name, label string) map[string]float64 {
	fam := t.family(name)
	if fam == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64)
	for _, s := range fam.Samples {
		if !t.match(s.Labels) {
			continue
		}
		key := s.Labels[label]
		if key == "" {
			continue
		}
		out[key] += s.Value
	}
	return out
}

// latency aggregates a histogram family: avg from merged sum/count, and the
// arithmetic mean of per-series quantile estimates. Seconds become
// milliseconds. Averaging per-series percentiles is an approximation the
// dashboard has always shown; merging buckets would change displayed numbers.
func (t *transformer) latency(name string) Latency {
	fam := t.family(name)
	if fam == nil {
		return Latency{}
	}

	var sum, count float64
	var p50, p95, p99 float64
	var series float64
	for _, h := range fam.Histograms {
		if !t.match(h.Labels) {
			continue
		}
		sum += h.Sum
		count += h.Count
		if h.Count > 0 {
			p50 += h.P50
			p95 += h.P95
			p99 += h.P99
			series++
		}
	}

	out := Latency{}
	if count > 0 {
		out.AvgMs = sum / count * 1000
	}
	if series > 0 {
		out.P50Ms = p50 / series * 1000
		out.P95Ms = p95 / series * 1000
		out.P99Ms = p99 / series * 1000
	}
	return out
}

// rate returns 100*num/den clamped to [0,100], or def when den is zero.
// Optimistic metrics (delivery success) default to 100, pessimistic ones
// (cache hit rate) to 0: no data is not failure.
func rate(num, den, def float64) float64 {
	if den <= 0 {
		return def
	}
	r := 100 * num / den
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func (t *transformer) http() HTTPMetrics {
	byStatus := t.sumBy("http_requests_total", "status")
	var requests, errors float64
	for status, v := range byStatus {
		requests += v
		if len(status) > 0 && status[0] == '5' {
			errors += v
		}
	}

	byPath := make(map[string]*HTTPPathStats)
	if fam := t.family("http_requests_total"); fam != nil {
		for _, s := range fam.Samples {
			if !t.match(s.Labels) {
				continue
			}
			path := s.Labels["path"]
			if path == "" {
				continue
			}
			ps, ok := byPath[path]
			if !ok {
				ps = &HTTPPathStats{}
				byPath[path] = ps
			}
			ps.Requests += s.Value
			if status := s.Labels["status"]; len(status) > 0 && status[0] == '5' {
				ps.Errors += s.Value
			}
		}
	}

	return HTTPMetrics{
		Requests:    requests,
		Errors:      errors,
		SuccessRate: rate(requests-errors, requests, 100),
		Latency:     t.latency("http_request_duration_seconds"),
		ByStatus:    byStatus,
		ByPath:      byPath,
	}
}

func (t *transformer) events() EventMetrics {
	captured := t.sum("events_captured_total")
	dropped := t.sum("events_dropped_total")
	delivered := t.sumWhere("webhook_deliveries_total", "status", "success")
	deliveryFailed := t.sumWhere("webhook_deliveries_total", "status", "error")

	byType := make(map[string]*EventTypeStats)
	for typ, v := range t.sumBy("events_captured_total", "event_type") {
		byType[typ] = &EventTypeStats{Captured: v}
	}
	for typ, v := range t.sumBy("events_dropped_total", "event_type") {
		ts, ok := byType[typ]
		if !ok {
			ts = &EventTypeStats{}
			byType[typ] = ts
		}
		ts.Dropped = v
	}

	byInstance := make(map[string]*EventInstanceStats)
	for id, v := range t.sumBy("events_captured_total", "instance_id") {
		byInstance[id] = &EventInstanceStats{Captured: v}
	}
	for id, v := range t.sumBy("events_dropped_total", "instance_id") {
		is, ok := byInstance[id]
		if !ok {
			is = &EventInstanceStats{}
			byInstance[id] = is
		}
		is.Dropped = v
	}
	if fam := t.family("webhook_deliveries_total"); fam != nil {
		for _, s := range fam.Samples {
			if !t.match(s.Labels) || s.Labels["status"] != "success" {
				continue
			}
			id := s.Labels["instance_id"]
			if id == "" {
				continue
			}
			is, ok := byInstance[id]
			if !ok {
				is = &EventInstanceStats{}
				byInstance[id] = is
			}
			is.Delivered += s.Value
		}
	}

	return EventMetrics{
		Captured:            captured,
		Dropped:             dropped,
		Buffered:            t.sum("events_buffered"),
		Delivered:           delivered,
		DeliveryFailed:      deliveryFailed,
		DeliverySuccessRate: rate(delivered, delivered+deliveryFailed, 100),
		ByType:              byType,
		ByInstance:          byInstance,
	}
}

func (t *transformer) messageQueue() MessageQueueMetrics {
	byStream := make(map[string]*StreamStats)
	stream := func(name string) *StreamStats {
		ss, ok := byStream[name]
		if !ok {
			ss = &StreamStats{}
			byStream[name] = ss
		}
		return ss
	}
	for name, v := range t.sumBy("nats_publish_total", "stream") {
		stream(name).Published = v
	}
	for name, v := range t.sumBy("nats_consume_total", "stream") {
		stream(name).Consumed = v
	}
	for name, v := range t.sumBy("nats_stream_messages", "stream") {
		stream(name).Messages = v
	}
	for name, v := range t.sumBy("nats_stream_bytes", "stream") {
		stream(name).Bytes = v
	}

	return MessageQueueMetrics{
		Published:      t.sum("nats_publish_total"),
		PublishErrors:  t.sum("nats_publish_errors_total"),
		Consumed:       t.sum("nats_consume_total"),
		ConsumeErrors:  t.sum("nats_consume_errors_total"),
		Acked:          t.sum("nats_ack_total"),
		Nacked:         t.sum("nats_nak_total"),
		DeadLettered:   t.sum("proxy_messages_dlq_total"),
		StreamMessages: t.sum("nats_stream_messages"),
		StreamBytes:    t.sum("nats_stream_bytes"),
		PublishLatency: t.latency("nats_publish_duration_seconds"),
		ConsumeLatency: t.latency("nats_consume_duration_seconds"),
		ByStream:       byStream,
	}
}

func (t *transformer) media() MediaMetrics {
	byType := make(map[string]*MediaTypeStats)
	if fam := t.family("media_processed_total"); fam != nil {
		for _, s := range fam.Samples {
			if !t.match(s.Labels) {
				continue
			}
			typ := s.Labels["media_type"]
			if typ == "" {
				continue
			}
			ms, ok := byType[typ]
			if !ok {
				ms = &MediaTypeStats{}
				byType[typ] = ms
			}
			if s.Labels["status"] == "error" {
				ms.Failed += s.Value
			} else {
				ms.Processed += s.Value
			}
		}
	}
	for typ, v := range t.sumBy("media_bytes_total", "media_type") {
		ms, ok := byType[typ]
		if !ok {
			ms = &MediaTypeStats{}
			byType[typ] = ms
		}
		ms.Bytes = v
	}

	failed := t.sumWhere("media_processed_total", "status", "error")
	return MediaMetrics{
		Processed: t.sum("media_processed_total") - failed,
		Failed:    failed,
		Bytes:     t.sum("media_bytes_total"),
		ByType:    byType,
	}
}

func (t *transformer) system() SystemMetrics {
	var uptime float64
	if start := t.sum("process_start_time_seconds"); start > 0 {
		elapsed := t.snap.ScrapedAt.Unix() - int64(start)
		if elapsed > 0 {
			uptime = float64(elapsed)
		}
	}
	return SystemMetrics{
		Goroutines:     t.sum("go_goroutines"),
		MemoryBytes:    t.sum("process_resident_memory_bytes"),
		CPUSeconds:     t.sum("process_cpu_seconds_total"),
		UptimeSeconds:  uptime,
		WebhookBacklog: t.sum("webhook_outbox_backlog"),
	}
}

func (t *transformer) workers() WorkerMetrics {
	byInstance := make(map[string]*WorkerInstanceStats)
	for id, v := range t.sumBy("proxy_pool_healing_total", "instance_id") {
		byInstance[id] = &WorkerInstanceStats{Healing: v}
	}

	return WorkerMetrics{
		Assignments:     t.sum("proxy_pool_assignments_total"),
		Releases:        t.sum("proxy_pool_releases_total"),
		Swaps:           t.sum("proxy_pool_swaps_total"),
		PoolSize:        t.sum("proxy_pool_size"),
		Healing:         t.sum("proxy_pool_healing_total"),
		HealingDuration: t.latency("proxy_pool_healing_duration_seconds"),
		ByInstance:      byInstance,
	}
}

func (t *transformer) transport() TransportMetrics {
	byInstance := make(map[string]*ProxyHealthStats)
	if fam := t.family("proxy_health_status"); fam != nil {
		for _, s := range fam.Samples {
			if !t.match(s.Labels) {
				continue
			}
			id := s.Labels["instance_id"]
			if id == "" {
				continue
			}
			ps, ok := byInstance[id]
			if !ok {
				ps = &ProxyHealthStats{}
				byInstance[id] = ps
			}
			ps.Healthy = s.Value >= 1
		}
	}
	for id, v := range t.sumBy("proxy_health_checks_total", "instance_id") {
		ps, ok := byInstance[id]
		if !ok {
			ps = &ProxyHealthStats{}
			byInstance[id] = ps
		}
		ps.HealthChecks = v
	}
	for id, v := range t.sumBy("proxy_swap_total", "instance_id") {
		ps, ok := byInstance[id]
		if !ok {
			ps = &ProxyHealthStats{}
			byInstance[id] = ps
		}
		ps.Swaps = v
	}

	var healthy float64
	for _, ps := range byInstance {
		if ps.Healthy {
			healthy++
		}
	}

	return TransportMetrics{
		Connected:         t.sum("nats_connection_status") >= 1,
		Reconnections:     t.sum("nats_reconnection_total"),
		Disconnections:    t.sum("nats_disconnection_total"),
		ConnectionErrors:  t.sum("nats_connection_error_total"),
		ProxyHealthChecks: t.sum("proxy_health_checks_total"),
		ProxyHealthy:      healthy,
		ProxySwaps:        t.sum("proxy_swap_total"),
		ByInstance:        byInstance,
	}
}

func (t *transformer) statusCache() StatusCacheMetrics {
	hits := t.sum("status_cache_hits_total")
	misses := t.sum("status_cache_misses_total")
	return StatusCacheMetrics{
		Hits:      hits,
		Misses:    misses,
		HitRate:   rate(hits, hits+misses, 0),
		Entries:   t.sum("status_cache_entries"),
		Evictions: t.sum("status_cache_evictions_total"),
	}
}

func (t *transformer) handlers() HandlerMetrics {
	byHandler := make(map[string]*HandlerTypeStats)
	if fam := t.family("handler_processed_total"); fam != nil {
		for _, s := range fam.Samples {
			if !t.match(s.Labels) {
				continue
			}
			h := s.Labels["handler"]
			if h == "" {
				continue
			}
			hs, ok := byHandler[h]
			if !ok {
				hs = &HandlerTypeStats{}
				byHandler[h] = hs
			}
			if s.Labels["status"] == "error" {
				hs.Failed += s.Value
			} else {
				hs.Processed += s.Value
			}
		}
	}

	failed := t.sumWhere("handler_processed_total", "status", "error")
	processed := t.sum("handler_processed_total") - failed
	return HandlerMetrics{
		Processed:   processed,
		Failed:      failed,
		SuccessRate: rate(processed, processed+failed, 100),
		Latency:     t.latency("handler_duration_seconds"),
		ByHandler:   byHandler,
	}
}
