package db

import (
	"context"
	"database/sql"
	"time"
)

type Provider interface {
	WithDB(func(db *sql.DB))
	Ping(ctx context.Context) error

	InsertSnapshot(ctx context.Context, rec SnapshotRecord) error
	LatestSnapshot(ctx context.Context) (*SnapshotRecord, error)
	ListSnapshots(ctx context.Context, from, to time.Time, limit int) ([]SnapshotPoint, error)
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	InsertContactMessage(ctx context.Context, msg ContactMessage) error
	ListContactMessages(ctx context.Context, page, pageSize int) (*PagedResult, error)
	DeleteContactMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
