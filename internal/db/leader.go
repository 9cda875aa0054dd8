package db

import (
	"context"
	"database/sql"
	"time"
)

// WithPGAdvisoryLeadership runs fn only while this process holds a session
// advisory lock, so background workers run on a single replica. lockKey
// should be a stable number per worker.
func WithPGAdvisoryLeadership(ctx context.Context, db *sql.DB, lockKey int64, fn func(context.Context)) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := db.Conn(ctx)
		if err != nil {
			return
		}

		var got bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&got); err != nil {
			_ = conn.Close()
			return
		}
		if !got {
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		// Leader for as long as this session connection lives.
		fn(ctx)

		_ = conn.Close()
		return
	}
}
