package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/funnelchat/console/internal/metrics"
)

type DatabaseProvider string

const (
	PostGreSQL DatabaseProvider = "postgresql"
	SQLite     DatabaseProvider = "sqlite"
)

// SnapshotRecord is one persisted scrape: the full dashboard payload plus a
// few hot columns so history queries avoid unmarshalling every row.
type SnapshotRecord struct {
	TS                time.Time          `json:"ts"`
	Hash              string             `json:"hash"`
	EventsCaptured    float64            `json:"eventsCaptured"`
	EventsBuffered    float64            `json:"eventsBuffered"`
	MessagesPublished float64            `json:"messagesPublished"`
	MessagesConsumed  float64            `json:"messagesConsumed"`
	HTTPRequests      float64            `json:"httpRequests"`
	WebhookBacklog    float64            `json:"webhookBacklog"`
	Dashboard         *metrics.Dashboard `json:"dashboard,omitempty"`
}

// NewSnapshotRecord lifts the hot columns out of a dashboard.
func NewSnapshotRecord(d *metrics.Dashboard, hash string) SnapshotRecord {
	return SnapshotRecord{
		TS:                d.ScrapedAt,
		Hash:              hash,
		EventsCaptured:    d.Events.Captured,
		EventsBuffered:    d.Events.Buffered,
		MessagesPublished: d.MessageQueue.Published,
		MessagesConsumed:  d.MessageQueue.Consumed,
		HTTPRequests:      d.HTTP.Requests,
		WebhookBacklog:    d.System.WebhookBacklog,
		Dashboard:         d,
	}
}

// SnapshotPoint is a history row without the payload.
type SnapshotPoint struct {
	TS                time.Time `json:"ts"`
	EventsCaptured    float64   `json:"eventsCaptured"`
	EventsBuffered    float64   `json:"eventsBuffered"`
	MessagesPublished float64   `json:"messagesPublished"`
	MessagesConsumed  float64   `json:"messagesConsumed"`
	HTTPRequests      float64   `json:"httpRequests"`
	WebhookBacklog    float64   `json:"webhookBacklog"`
}

type ContactMessage struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type PagedResult struct {
	TotalPages int         `json:"totalPages"`
	Total      int         `json:"total"`
	Data       interface{} `json:"data"`
}
