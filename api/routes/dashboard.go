package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/funnelchat/console/internal/db"
	"github.com/funnelchat/console/internal/metrics"
)

const (
	defaultHistoryWindow = 24 * time.Hour
	defaultHistoryLimit  = 500
	maxHistoryLimit      = 5000
)

// dashboard serves the aggregated view: cache first, then a live scrape,
// then the stored snapshot marked stale. Only unfiltered reads may fall back
// to the store.
func (r *routes) dashboard(w http.ResponseWriter, req *http.Request) {
	instanceID := req.URL.Query().Get("instance_id")

	cached, err := r.cache.Get(req.Context(), instanceID)
	if err != nil {
		slog.Warn("dashboard cache read failed", "err", err)
	}
	if cached != nil {
		writeJSONResponse(req, w, cached)
		return
	}

	if r.scraper != nil {
		snap, err := r.scraper.Snapshot(req.Context())
		if err == nil {
			dash := metrics.ToDashboard(snap, metrics.Options{InstanceID: instanceID})
			if err := r.cache.Set(req.Context(), instanceID, dash, r.cacheTTL); err != nil {
				slog.Warn("dashboard cache write failed", "err", err)
			}
			writeJSONResponse(req, w, dash)
			return
		}
		slog.Warn("live scrape failed, falling back to stored snapshot", "err", err)
	}

	// Stored snapshots are unfiltered aggregates, so they cannot stand in for
	// an instance-scoped read.
	if instanceID != "" {
		writeErrorResponse(req, w, fmt.Errorf("no fresh dashboard available for instance %s", instanceID), http.StatusServiceUnavailable)
		return
	}

	rec, err := r.dbProvider.LatestSnapshot(req.Context())
	if err != nil {
		if db.IsNoResults(err) {
			writeErrorResponse(req, w, fmt.Errorf("no dashboard available yet"), http.StatusServiceUnavailable)
			return
		}
		slog.Error("unable to load latest snapshot", "err", err)
		writeErrorResponse(req, w, fmt.Errorf("unable to load latest snapshot: %w", err), http.StatusInternalServerError)
		return
	}

	dash := rec.Dashboard
	dash.Stale = true
	writeJSONResponse(req, w, dash)
}

func (r *routes) dashboardHistory(w http.ResponseWriter, req *http.Request) {
	now := time.Now().UTC()

	to, err := getTimeParam(req, "to", now)
	if err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid to parameter: %w", err), http.StatusBadRequest)
		return
	}

	from, err := getTimeParam(req, "from", to.Add(-defaultHistoryWindow))
	if err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid from parameter: %w", err), http.StatusBadRequest)
		return
	}

	if !from.Before(to) {
		writeErrorResponse(req, w, fmt.Errorf("from must be before to"), http.StatusBadRequest)
		return
	}

	limit, err := getQueryParamAsInt(req, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 {
		writeErrorResponse(req, w, fmt.Errorf("invalid limit parameter"), http.StatusBadRequest)
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	points, err := r.dbProvider.ListSnapshots(req.Context(), from, to, limit)
	if err != nil {
		slog.Error("unable to list snapshots", "err", err)
		writeErrorResponse(req, w, fmt.Errorf("unable to list snapshots: %w", err), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(req, w, points)
}
