package db

import (
	"context"
	"flag"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	_ "modernc.org/sqlite"

	"github.com/funnelchat/console/internal/config"
)

type SQLiteProvider struct {
	store
}

const configureSqliteStmt = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = normal;
	PRAGMA journal_size_limit = 6144000;
`

func RegisterSqliteFlags(flagSet *flag.FlagSet) {
	flagSet.StringVar(&config.DefaultConfig.Database.SQLite.DatabasePath, "sqlite-database-path", "funnelchat-console.db", "Path to the sqlite database.")
}

func newSqliteProvider(ctx context.Context) (Provider, error) {
	path := config.DefaultConfig.Database.SQLite.DatabasePath
	if path == "" {
		path = "funnelchat-console.db"
	}

	db, err := otelsql.Open("sqlite", path, otelsql.WithAttributes(semconv.DBSystemSqlite))
	if err != nil {
		return nil, ConnectionError(err, "sqlite")
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, ConnectionError(err, "sqlite")
	}

	if _, err := db.ExecContext(ctx, configureSqliteStmt); err != nil {
		return nil, fmt.Errorf("failed to configure sqlite database: %w", err)
	}

	if err := runMigrations(ctx, db, "sqlite"); err != nil {
		return nil, err
	}

	return &SQLiteProvider{store{db: db, rebind: identityBind}}, nil
}

func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}
