package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thanos-io/thanos/pkg/tracing/otlp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/funnelchat/console/internal/config"
)

type kitLogger struct {
	logger *slog.Logger
}

func newKitLogger(logger *slog.Logger) *kitLogger {
	return &kitLogger{logger: logger}
}

func (kl *kitLogger) Log(keyvals ...interface{}) error {
	kl.logger.Log(context.Background(), slog.LevelInfo, "", keyvals...)
	return nil
}

// WithTracing bootstraps an OTLP tracer provider from the tracing section of
// the loaded configuration and installs it globally.
func WithTracing(ctx context.Context, logger *slog.Logger) (*trace.TracerProvider, error) {
	raw, err := yaml.Marshal(config.DefaultConfig.Tracing)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal tracing config: %w", err)
	}

	tp, err := otlp.NewTracerProvider(ctx, newKitLogger(logger), raw)
	otel.SetTracerProvider(tp)
	return tp, err
}
