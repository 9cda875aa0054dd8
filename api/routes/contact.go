package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/funnelchat/console/api/models"
	"github.com/funnelchat/console/internal/db"
)

const maxContactBodyLength = 10000

func (r *routes) submitContact(w http.ResponseWriter, req *http.Request) {
	var contact models.ContactRequest
	if err := json.NewDecoder(req.Body).Decode(&contact); err != nil {
		writeErrorResponse(req, w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	if err := validateContact(contact); err != nil {
		writeErrorResponse(req, w, err, http.StatusBadRequest)
		return
	}

	msg := db.ContactMessage{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(contact.Name),
		Email:     strings.TrimSpace(contact.Email),
		Subject:   strings.TrimSpace(contact.Subject),
		Body:      strings.TrimSpace(contact.Body),
		CreatedAt: time.Now().UTC(),
	}

	if err := r.dbProvider.InsertContactMessage(req.Context(), msg); err != nil {
		slog.Error("unable to store contact message", "err", err)
		writeErrorResponse(req, w, fmt.Errorf("unable to store contact message"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(models.ActionResponse{Success: true}); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

func (r *routes) listContactMessages(w http.ResponseWriter, req *http.Request) {
	page, err := getQueryParamAsInt(req, "page", 1)
	if err != nil || page <= 0 {
		writeErrorResponse(req, w, fmt.Errorf("invalid page parameter"), http.StatusBadRequest)
		return
	}

	pageSize, err := getQueryParamAsInt(req, "pageSize", 20)
	if err != nil || pageSize <= 0 {
		writeErrorResponse(req, w, fmt.Errorf("invalid pageSize parameter"), http.StatusBadRequest)
		return
	}

	result, err := r.dbProvider.ListContactMessages(req.Context(), page, pageSize)
	if err != nil {
		slog.Error("unable to list contact messages", "err", err)
		writeErrorResponse(req, w, fmt.Errorf("unable to list contact messages"), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(req, w, result)
}

func validateContact(contact models.ContactRequest) error {
	if strings.TrimSpace(contact.Name) == "" {
		return fmt.Errorf("name is required")
	}
	email := strings.TrimSpace(contact.Email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("email is invalid")
	}
	if strings.TrimSpace(contact.Body) == "" {
		return fmt.Errorf("body is required")
	}
	if len(contact.Body) > maxContactBodyLength {
		return fmt.Errorf("body exceeds %d characters", maxContactBodyLength)
	}
	return nil
}
