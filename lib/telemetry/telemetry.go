package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

// InitSlog installs a text handler on stderr as the default logger.
func InitSlog(debug bool) {
	InitSlogTo(os.Stderr, debug)
}

// InitSlogTo is InitSlog writing to `w`.
func InitSlogTo(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})))
}

type OtlpConfig struct {
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

// Enabled reports whether spans should be exported at all.
func (c Config) Enabled() bool {
	return c.Otlp.HttpEndpoint != ""
}

type Telemetry struct {
	// TracerProvider is nil when exporting is disabled.
	TracerProvider *trace.TracerProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	return t.TracerProvider.Shutdown(ctx)
}

// Setup installs a global tracer provider exporting over OTLP/HTTP. When the config
// names no endpoint nothing is installed and the otel no-op tracer stays in place.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	if !config.Enabled() {
		slog.Debug("tracing disabled, no otlp endpoint configured")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider, err := newTraceProvider(ctx, r, config)
	if err != nil {
		return Telemetry{}, err
	}
	otel.SetTracerProvider(tracerProvider)

	return Telemetry{
		TracerProvider: tracerProvider,
	}, nil
}
