package db

import (
	"context"
	"flag"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/funnelchat/console/internal/config"
)

type PostGreSQLProvider struct {
	store
}

func RegisterPostGreSQLFlags(flagSet *flag.FlagSet) {
	pg := &config.DefaultConfig.Database.PostgreSQL
	flagSet.StringVar(&pg.Addr, "postgresql-addr", "localhost", "Address of the postgresql server.")
	flagSet.IntVar(&pg.Port, "postgresql-port", 5432, "Port of the postgresql server.")
	flagSet.StringVar(&pg.Database, "postgresql-database", "funnelchat_console", "Name of the postgresql database.")
	flagSet.StringVar(&pg.User, "postgresql-user", "postgres", "User of the postgresql database.")
	flagSet.StringVar(&pg.Password, "postgresql-password", "", "Password of the postgresql database.")
	flagSet.StringVar(&pg.SSLMode, "postgresql-sslmode", "disable", "SSL mode for the postgresql connection.")
	flagSet.DurationVar(&pg.DialTimeout, "postgresql-dial-timeout", 5*time.Second, "Dial timeout for the postgresql connection.")
	flagSet.IntVar(&pg.MaxOpenConns, "postgresql-max-open-conns", 10, "Maximum number of open connections.")
	flagSet.IntVar(&pg.MaxIdleConns, "postgresql-max-idle-conns", 5, "Maximum number of idle connections.")
	flagSet.DurationVar(&pg.ConnMaxLifetime, "postgresql-conn-max-lifetime", 30*time.Minute, "Maximum lifetime of a connection.")
}

func newPostGreSQLProvider(ctx context.Context) (Provider, error) {
	pg := config.DefaultConfig.Database.PostgreSQL

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		pg.Addr, pg.Port, pg.User, pg.Password, pg.Database, pg.SSLMode,
		int(pg.DialTimeout.Seconds()),
	)

	db, err := otelsql.Open("postgres", dsn, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, ConnectionError(err, "postgresql")
	}

	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return nil, ConnectionError(err, "postgresql")
	}

	if err := runMigrations(ctx, db, "postgresql"); err != nil {
		return nil, err
	}

	return &PostGreSQLProvider{store{db: db, rebind: postgresBind}}, nil
}

func (p *PostGreSQLProvider) Close() error {
	return p.db.Close()
}
