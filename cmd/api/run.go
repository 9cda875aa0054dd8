package api

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"github.com/funnelchat/console/api/routes"
	"github.com/funnelchat/console/internal/cache"
	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/db"
	"github.com/funnelchat/console/internal/retention"
	"github.com/funnelchat/console/internal/scraper"
	"github.com/funnelchat/console/internal/upstream"
)

const (
	scrapeLeaderLockKey    = 0x736372617065
	retentionLeaderLockKey = 0x726574656e74
)

func RegisterFlags(fs *flag.FlagSet, configFile *string) {
	fs.StringVar(configFile, "config-file", "", "Path to the configuration file, it takes precedence over the command line flags.")
	fs.StringVar(&config.DefaultConfig.Database.Provider, "database-provider", "", "The provider of database to use for storing snapshots. Supported values: postgresql, sqlite.")
	fs.StringVar(&config.DefaultConfig.Server.InsecureListenAddress, "insecure-listen-address", ":9091", "The address the console HTTP server should listen on.")
	fs.StringVar(&config.DefaultConfig.Upstream.URL, "upstream", "", "The URL of the upstream funnelchat API.")
	fs.StringVar(&config.DefaultConfig.Upstream.MetricsPath, "upstream-metrics-path", config.DefaultConfig.Upstream.MetricsPath, "Path of the metrics exposition endpoint on the upstream.")
	fs.StringVar(&config.DefaultConfig.Upstream.ClientToken, "upstream-client-token", "", "Client token sent to the upstream API on every request.")
	fs.DurationVar(&config.DefaultConfig.Upstream.Timeout, "upstream-timeout", config.DefaultConfig.Upstream.Timeout, "Timeout for requests to the upstream API.")

	db.RegisterPostGreSQLFlags(fs)
	db.RegisterSqliteFlags(fs)
	config.RegisterScrapeFlags(fs)
	config.RegisterCacheFlags(fs)
	config.RegisterMemoryLimitFlags(fs)
	config.RegisterRetentionFlags(fs)
}

func Run() error {
	upstreamClient, err := upstream.New(
		config.DefaultConfig.Upstream.URL,
		upstream.WithMetricsPath(config.DefaultConfig.Upstream.MetricsPath),
		upstream.WithClientToken(config.DefaultConfig.Upstream.ClientToken),
		upstream.WithTimeout(config.DefaultConfig.Upstream.Timeout),
	)
	if err != nil {
		slog.Error("unable to create upstream client", "err", err)
		return fmt.Errorf("create upstream client: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var g run.Group

	dbProvider, err := db.GetDbProvider(context.Background(), db.DatabaseProvider(config.DefaultConfig.Database.Provider))
	if err != nil {
		slog.Error("unable to create db provider", "err", err)
		return fmt.Errorf("create db provider: %w", err)
	}
	defer func() {
		if err := dbProvider.Close(); err != nil {
			slog.Error("error closing database provider", "err", err)
		}
	}()

	dashCache := cache.NewNoopCache()
	if config.DefaultConfig.Cache.Addr != "" {
		dashCache, err = cache.NewRedisCache(
			config.DefaultConfig.Cache.Addr,
			config.DefaultConfig.Cache.Username,
			config.DefaultConfig.Cache.Password,
			config.DefaultConfig.Cache.DB,
		)
		if err != nil {
			slog.Error("unable to create dashboard cache", "err", err)
			return fmt.Errorf("create dashboard cache: %w", err)
		}
	}
	defer func() {
		if err := dashCache.Close(); err != nil {
			slog.Error("error closing dashboard cache", "err", err)
		}
	}()

	var metricsScraper *scraper.Scraper
	if config.DefaultConfig.Scrape.Enabled {
		metricsScraper, err = scraper.New(upstreamClient, dbProvider, dashCache, config.DefaultConfig, reg)
		if err != nil {
			slog.Error("unable to create scraper", "err", err)
			return fmt.Errorf("create scraper: %w", err)
		}
		addWorker(&g, dbProvider, scrapeLeaderLockKey, metricsScraper.Run)
	}

	{
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		routesHandler, err := routes.NewRoutes(
			routes.WithDBProvider(dbProvider),
			routes.WithCache(dashCache),
			routes.WithUpstream(upstreamClient),
			routes.WithScraper(metricsScraper),
			routes.WithCacheTTL(config.DefaultConfig.Scrape.CacheTTL),
			routes.WithHandlers(reg, config.DefaultConfig.IsTracingEnabled()),
		)
		if err != nil {
			slog.Error("unable to create routes", "err", err)
			return fmt.Errorf("create routes: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/", routesHandler)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			mux.ServeHTTP(w, r)
		})

		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   config.DefaultConfig.CORS.AllowedOrigins,
			AllowedMethods:   config.DefaultConfig.CORS.AllowedMethods,
			AllowedHeaders:   config.DefaultConfig.CORS.AllowedHeaders,
			AllowCredentials: config.DefaultConfig.CORS.AllowCredentials,
			MaxAge:           config.DefaultConfig.CORS.MaxAge,
		}).Handler(handler)

		l, err := net.Listen("tcp", config.DefaultConfig.Server.InsecureListenAddress)
		if err != nil {
			slog.Error("failed to listen on address", "err", err)
			return fmt.Errorf("listen: %w", err)
		}

		srv := &http.Server{
			Handler: corsHandler,
		}

		g.Add(func() error {
			slog.Info("listening insecurely", "addr", l.Addr())
			if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
				slog.Error("server stopped", "err", err)
				return err
			}
			return nil
		}, func(error) {
			slog.Info("stopping HTTP Server")
			cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("error shutting down server", "err", err)
			}
		})
	}

	if config.DefaultConfig.Retention.Enabled {
		retWorker, err := retention.NewWorker(dbProvider, config.DefaultConfig, reg)
		if err != nil {
			slog.Error("unable to create retention worker", "err", err)
		} else {
			addWorker(&g, dbProvider, retentionLeaderLockKey, retWorker.Run)
		}
	}

	{
		g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))
	}

	if err := g.Run(); err != nil {
		if !errors.As(err, &run.SignalError{}) {
			return err
		}
	}
	return nil
}

// addWorker schedules a background loop, guarded by an advisory lock on
// postgres so only one replica runs it.
func addWorker(g *run.Group, dbProvider db.Provider, lockKey int64, fn func(context.Context)) {
	switch db.DatabaseProvider(config.DefaultConfig.Database.Provider) {
	case db.PostGreSQL:
		dbProvider.WithDB(func(d *sql.DB) {
			ctx, cancel := context.WithCancel(context.Background())
			g.Add(func() error {
				db.WithPGAdvisoryLeadership(ctx, d, lockKey, fn)
				return nil
			}, func(err error) { cancel() })
		})
	default:
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error { fn(ctx); return nil }, func(err error) { cancel() })
	}
}
