package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/funnelchat/console/cmd/api"
	"github.com/funnelchat/console/internal/config"
	"github.com/funnelchat/console/internal/tracing"
)

func main() {
	var (
		configFile string
		logLevel   string
		logFormat  string
	)

	flagset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagset.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	flagset.StringVar(&logFormat, "log-format", "logfmt", "Log format (logfmt, json).")
	api.RegisterFlags(flagset, &configFile)
	if err := flagset.Parse(os.Args[1:]); err != nil {
		slog.Error("unable to parse flags", "err", err)
		os.Exit(1)
	}

	setupLogger(logLevel, logFormat)

	if configFile != "" {
		if err := config.LoadConfig(configFile); err != nil {
			slog.Error("unable to load config file", "err", err, "path", configFile)
			os.Exit(1)
		}
	}

	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(config.DefaultConfig.MemLimit.Ratio),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	); err != nil {
		slog.Warn("unable to set GOMEMLIMIT", "err", err)
	}

	if config.DefaultConfig.IsTracingEnabled() {
		tp, err := tracing.WithTracing(context.Background(), slog.Default())
		if err != nil {
			slog.Error("unable to set up tracing", "err", err)
			os.Exit(1)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("error shutting down tracer provider", "err", err)
			}
		}()
	}

	if err := api.Run(); err != nil {
		slog.Error("console stopped", "err", err)
		os.Exit(1)
	}
}

func setupLogger(level, format string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
