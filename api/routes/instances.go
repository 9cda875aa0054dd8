package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/funnelchat/console/api/models"
	"github.com/funnelchat/console/internal/upstream"
)

// instanceTokenHeader carries the per-instance bearer token that the upstream
// expects in its token-scoped routes.
const instanceTokenHeader = "Instance-Token"

func instanceID(req *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(req.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid instance id: %w", err)
	}
	return id, nil
}

func instanceToken(req *http.Request) (string, error) {
	token := req.Header.Get(instanceTokenHeader)
	if token == "" {
		return "", fmt.Errorf("missing %s header", instanceTokenHeader)
	}
	return token, nil
}

// upstreamError maps client errors to a pass-through status so the caller can
// distinguish "instance not found" from "upstream is down".
func (r *routes) upstreamError(req *http.Request, w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		writeErrorResponse(req, w, errors.New(apiErr.Message), apiErr.StatusCode)
		return
	}
	slog.Error("upstream request failed", "err", err, "path", req.URL.Path)
	writeErrorResponse(req, w, fmt.Errorf("upstream request failed: %w", err), http.StatusBadGateway)
}

func (r *routes) listInstances(w http.ResponseWriter, req *http.Request) {
	page, err := getQueryParamAsInt(req, "page", 1)
	if err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid page parameter: %w", err), http.StatusBadRequest)
		return
	}

	pageSize, err := getQueryParamAsInt(req, "pageSize", 20)
	if err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid pageSize parameter: %w", err), http.StatusBadRequest)
		return
	}

	list, err := r.upstream.ListInstances(req.Context(), upstream.ListParams{
		Page:       page,
		PageSize:   pageSize,
		Query:      req.URL.Query().Get("query"),
		Middleware: req.URL.Query().Get("middleware"),
	})
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, list)
}

func (r *routes) createInstance(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		writeErrorResponse(req, w, fmt.Errorf("name is required"), http.StatusBadRequest)
		return
	}

	instance, err := r.upstream.CreateInstance(req.Context(), body.Name)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(instance); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

func (r *routes) deleteInstance(w http.ResponseWriter, req *http.Request) {
	id, err := instanceID(req)
	if err != nil {
		writeErrorResponse(req, w, err, http.StatusBadRequest)
		return
	}

	if err := r.upstream.DeleteInstance(req.Context(), id); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) instanceStatus(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	status, err := r.upstream.GetStatus(req.Context(), id, token)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, status)
}

func (r *routes) restartInstance(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	if err := r.upstream.Restart(req.Context(), id, token); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) disconnectInstance(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	if err := r.upstream.Disconnect(req.Context(), id, token); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) instanceQRCode(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	qr, err := r.upstream.QRCode(req.Context(), id, token)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, qr)
}

func (r *routes) instancePhoneCode(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	phone := req.PathValue("phone")
	if phone == "" {
		writeErrorResponse(req, w, fmt.Errorf("missing phone parameter"), http.StatusBadRequest)
		return
	}

	code, err := r.upstream.PhoneCode(req.Context(), id, token, phone)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, code)
}

func (r *routes) updateWebhooks(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	var settings models.WebhookSettings
	if err := json.NewDecoder(req.Body).Decode(&settings); err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	if err := r.upstream.UpdateWebhooks(req.Context(), id, token, settings); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) getProxy(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	cfg, err := r.upstream.GetProxy(req.Context(), id, token)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, cfg)
}

func (r *routes) setProxy(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	var cfg models.ProxyConfig
	if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if cfg.ProxyURL == nil || *cfg.ProxyURL == "" {
		writeErrorResponse(req, w, fmt.Errorf("proxyUrl is required"), http.StatusBadRequest)
		return
	}

	updated, err := r.upstream.SetProxy(req.Context(), id, token, cfg)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true, Data: updated})
}

func (r *routes) removeProxy(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	if err := r.upstream.RemoveProxy(req.Context(), id, token); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) testProxy(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	if err := r.upstream.TestProxy(req.Context(), id, token); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) swapProxy(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	cfg, err := r.upstream.SwapProxy(req.Context(), id, token)
	if err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true, Data: cfg})
}

func (r *routes) activateSubscription(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	if err := r.upstream.Subscribe(req.Context(), id, token); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) cancelSubscription(w http.ResponseWriter, req *http.Request) {
	id, token, ok := r.tokenRoute(w, req)
	if !ok {
		return
	}

	if err := r.upstream.CancelSubscription(req.Context(), id, token); err != nil {
		r.upstreamError(req, w, err)
		return
	}

	writeJSONResponse(req, w, models.ActionResponse{Success: true})
}

func (r *routes) tokenRoute(w http.ResponseWriter, req *http.Request) (uuid.UUID, string, bool) {
	id, err := instanceID(req)
	if err != nil {
		writeErrorResponse(req, w, err, http.StatusBadRequest)
		return uuid.Nil, "", false
	}

	token, err := instanceToken(req)
	if err != nil {
		writeErrorResponse(req, w, err, http.StatusUnauthorized)
		return uuid.Nil, "", false
	}

	return id, token, true
}
