package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/metalmatze/signal/server/signalhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/funnelchat/console/internal/cache"
	"github.com/funnelchat/console/internal/db"
	"github.com/funnelchat/console/internal/scraper"
	"github.com/funnelchat/console/internal/upstream"
)

type routes struct {
	mux *http.ServeMux

	dbProvider db.Provider
	cache      cache.DashboardCache
	upstream   *upstream.Client
	scraper    *scraper.Scraper
	cacheTTL   time.Duration
}

type Option func(*routes)

func WithDBProvider(dbProvider db.Provider) Option {
	return func(r *routes) {
		r.dbProvider = dbProvider
	}
}

func WithCache(c cache.DashboardCache) Option {
	return func(r *routes) {
		r.cache = c
	}
}

func WithUpstream(client *upstream.Client) Option {
	return func(r *routes) {
		r.upstream = client
	}
}

func WithScraper(s *scraper.Scraper) Option {
	return func(r *routes) {
		r.scraper = s
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(r *routes) {
		r.cacheTTL = ttl
	}
}

func WithHandlers(registry *prometheus.Registry, isTracingEnabled bool) Option {
	return func(r *routes) {
		i := signalhttp.NewHandlerInstrumenter(registry, []string{"handler"})
		traced := func(name string, h http.HandlerFunc) http.Handler {
			handler := http.Handler(h)
			if isTracingEnabled {
				handler = otelhttp.NewHandler(handler, name)
			}
			return i.NewHandler(prometheus.Labels{"handler": name}, handler)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.Handle("GET /healthz", http.HandlerFunc(r.healthz))
		mux.Handle("GET /readyz", http.HandlerFunc(r.readyz))

		mux.Handle("GET /api/v1/dashboard", traced("dashboard", r.dashboard))
		mux.Handle("GET /api/v1/dashboard/history", traced("dashboard_history", r.dashboardHistory))

		mux.Handle("GET /api/v1/instances", traced("instances_list", r.listInstances))
		mux.Handle("POST /api/v1/instances", traced("instances_create", r.createInstance))
		mux.Handle("DELETE /api/v1/instances/{id}", traced("instances_delete", r.deleteInstance))
		mux.Handle("GET /api/v1/instances/{id}/status", traced("instance_status", r.instanceStatus))
		mux.Handle("POST /api/v1/instances/{id}/restart", traced("instance_restart", r.restartInstance))
		mux.Handle("POST /api/v1/instances/{id}/disconnect", traced("instance_disconnect", r.disconnectInstance))
		mux.Handle("GET /api/v1/instances/{id}/qr-code", traced("instance_qr_code", r.instanceQRCode))
		mux.Handle("GET /api/v1/instances/{id}/phone-code/{phone}", traced("instance_phone_code", r.instancePhoneCode))
		mux.Handle("PUT /api/v1/instances/{id}/webhooks", traced("instance_webhooks", r.updateWebhooks))
		mux.Handle("GET /api/v1/instances/{id}/proxy", traced("proxy_get", r.getProxy))
		mux.Handle("PUT /api/v1/instances/{id}/proxy", traced("proxy_set", r.setProxy))
		mux.Handle("DELETE /api/v1/instances/{id}/proxy", traced("proxy_remove", r.removeProxy))
		mux.Handle("POST /api/v1/instances/{id}/proxy/test", traced("proxy_test", r.testProxy))
		mux.Handle("POST /api/v1/instances/{id}/proxy/swap", traced("proxy_swap", r.swapProxy))
		mux.Handle("POST /api/v1/instances/{id}/subscription", traced("subscription_activate", r.activateSubscription))
		mux.Handle("DELETE /api/v1/instances/{id}/subscription", traced("subscription_cancel", r.cancelSubscription))

		mux.Handle("POST /api/v1/contact", traced("contact", r.submitContact))
		mux.Handle("GET /api/v1/contact", traced("contact_list", r.listContactMessages))

		r.mux = mux
	}
}

func NewRoutes(opts ...Option) (*routes, error) {
	r := &routes{
		mux:      http.NewServeMux(),
		cacheTTL: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.dbProvider == nil {
		return nil, fmt.Errorf("a database provider is required")
	}
	if r.upstream == nil {
		return nil, fmt.Errorf("an upstream client is required")
	}
	if r.cache == nil {
		r.cache = cache.NewNoopCache()
	}

	return r, nil
}

func (r *routes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *routes) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *routes) readyz(w http.ResponseWriter, req *http.Request) {
	if err := r.dbProvider.Ping(req.Context()); err != nil {
		writeErrorResponse(req, w, fmt.Errorf("database not ready: %w", err), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func getQueryParamAsInt(req *http.Request, param string, defaultValue int) (int, error) {
	value := req.URL.Query().Get(param)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func getTimeParam(req *http.Request, param string, defaultValue time.Time) (time.Time, error) {
	value := req.URL.Query().Get(param)
	if value == "" {
		return defaultValue, nil
	}
	return time.Parse(time.RFC3339, value)
}

func writeJSONResponse(req *http.Request, w http.ResponseWriter, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
		writeErrorResponse(req, w, fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError)
		return
	}
}

func writeErrorResponse(r *http.Request, w http.ResponseWriter, err error, status int) {
	response := struct {
		Error   string `json:"error"`
		Code    int    `json:"code"`
		TraceID string `json:"traceId,omitempty"`
	}{
		Error:   err.Error(),
		Code:    status,
		TraceID: trace.SpanFromContext(r.Context()).SpanContext().TraceID().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		slog.Error("failed to encode JSON response", "err", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
}
