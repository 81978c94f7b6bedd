package commands

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgpurge/internal/logger"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

const serviceName = "orgpurge"

type Globals struct {
	Debug            bool
	LogLevel         string
	Tracing          bool
	TraceSampleRatio float64
	Version          string
}

// setup installs the root logger, globally and on ctx, and starts telemetry when enabled.
// The returned function flushes telemetry and must be called before exit.
func (g *Globals) setup(ctx context.Context, command string) (context.Context, zerolog.Logger, func()) {
	log := logger.Setup(g.Debug, g.LogLevel).With().Str("command", command).Logger()
	zlog.Logger = log
	zerolog.DefaultContextLogger = &log
	ctx = log.WithContext(ctx)

	log.Info().Str("version", g.Version).Bool("debug", g.Debug).Msg("Starting")

	if !g.Tracing {
		return ctx, log, func() {}
	}

	log.Info().Float64("sample_ratio", g.TraceSampleRatio).Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
		ServiceName: serviceName + "-" + command,
		Version:     g.Version,
		Stage:       os.Getenv("STAGE"),
		SampleRatio: g.TraceSampleRatio,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return ctx, log, func() {}
	}

	return ctx, log, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
