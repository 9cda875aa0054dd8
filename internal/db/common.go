package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/funnelchat/console/internal/metrics"
)

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrorWithOperation(err, "parse contact message id")
	}
	return id, nil
}

// store implements the SQL shared by both engines. Statements are written
// with "?" placeholders and rebound per dialect.
type store struct {
	db     *sql.DB
	rebind func(string) string
}

func identityBind(q string) string { return q }

// postgresBind rewrites "?" placeholders to "$1".."$n".
func postgresBind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *store) WithDB(f func(db *sql.DB)) {
	f(s.db)
}

func (s *store) InsertSnapshot(ctx context.Context, rec SnapshotRecord) error {
	payload, err := json.Marshal(rec.Dashboard)
	if err != nil {
		return ErrorWithOperation(err, "marshal snapshot payload")
	}

	const q = `
		INSERT INTO snapshots (
			ts, hash, events_captured, events_buffered,
			messages_published, messages_consumed, http_requests,
			webhook_backlog, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, s.rebind(q),
		rec.TS.UnixMilli(), rec.Hash,
		rec.EventsCaptured, rec.EventsBuffered,
		rec.MessagesPublished, rec.MessagesConsumed,
		rec.HTTPRequests, rec.WebhookBacklog,
		string(payload),
	)
	if err != nil {
		return ErrorWithOperation(err, "insert snapshot")
	}
	return nil
}

func (s *store) LatestSnapshot(ctx context.Context) (*SnapshotRecord, error) {
	const q = `
		SELECT ts, hash, events_captured, events_buffered,
		       messages_published, messages_consumed, http_requests,
		       webhook_backlog, payload
		FROM snapshots
		ORDER BY ts DESC
		LIMIT 1`

	var (
		rec     SnapshotRecord
		tsMilli int64
		payload string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q)).Scan(
		&tsMilli, &rec.Hash,
		&rec.EventsCaptured, &rec.EventsBuffered,
		&rec.MessagesPublished, &rec.MessagesConsumed,
		&rec.HTTPRequests, &rec.WebhookBacklog,
		&payload,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoResults
	}
	if err != nil {
		return nil, ErrorWithOperation(err, "query latest snapshot")
	}

	rec.TS = time.UnixMilli(tsMilli).UTC()
	var d metrics.Dashboard
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, ErrorWithOperation(err, "unmarshal snapshot payload")
	}
	rec.Dashboard = &d
	return &rec, nil
}

func (s *store) ListSnapshots(ctx context.Context, from, to time.Time, limit int) ([]SnapshotPoint, error) {
	const q = `
		SELECT ts, events_captured, events_buffered,
		       messages_published, messages_consumed, http_requests,
		       webhook_backlog
		FROM snapshots
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), from.UnixMilli(), to.UnixMilli(), limit)
	if err != nil {
		return nil, ErrorWithOperation(err, "query snapshots")
	}
	defer func() { _ = rows.Close() }()

	points := make([]SnapshotPoint, 0)
	for rows.Next() {
		var (
			p       SnapshotPoint
			tsMilli int64
		)
		if err := rows.Scan(
			&tsMilli, &p.EventsCaptured, &p.EventsBuffered,
			&p.MessagesPublished, &p.MessagesConsumed,
			&p.HTTPRequests, &p.WebhookBacklog,
		); err != nil {
			return nil, ErrorWithOperation(err, "scan snapshot row")
		}
		p.TS = time.UnixMilli(tsMilli).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrorWithOperation(err, "iterate snapshot rows")
	}
	return points, nil
}

func (s *store) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM snapshots WHERE ts < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, ErrorWithOperation(err, "delete snapshots")
	}
	return res.RowsAffected()
}

func (s *store) InsertContactMessage(ctx context.Context, msg ContactMessage) error {
	const q = `
		INSERT INTO contact_messages (id, name, email, subject, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(q),
		msg.ID.String(), msg.Name, msg.Email, msg.Subject, msg.Body,
		msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return ErrorWithOperation(err, "insert contact message")
	}
	return nil
}

func (s *store) ListContactMessages(ctx context.Context, page, pageSize int) (*PagedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages`).Scan(&total); err != nil {
		return nil, ErrorWithOperation(err, "count contact messages")
	}

	const q = `
		SELECT id, name, email, subject, body, created_at
		FROM contact_messages
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, ErrorWithOperation(err, "query contact messages")
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]ContactMessage, 0, pageSize)
	for rows.Next() {
		var (
			m       ContactMessage
			id      string
			created int64
		)
		if err := rows.Scan(&id, &m.Name, &m.Email, &m.Subject, &m.Body, &created); err != nil {
			return nil, ErrorWithOperation(err, "scan contact message row")
		}
		if m.ID, err = parseUUID(id); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrorWithOperation(err, "iterate contact message rows")
	}

	return &PagedResult{
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		Data:       msgs,
	}, nil
}

func (s *store) DeleteContactMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM contact_messages WHERE created_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, ErrorWithOperation(err, "delete contact messages")
	}
	return res.RowsAffected()
}
