package logger

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SampleSize is the number of items logged from large collections.
const SampleSize = 10

// Setup builds the root logger. level overrides the default (info, or debug when dev is set);
// an unknown level falls back to the default.
func Setup(dev bool, level string) zerolog.Logger {
	var logger zerolog.Logger
	lvl := zerolog.InfoLevel
	if dev {
		lvl = zerolog.DebugLevel
	}

	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	logger = zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(lvl).With().Stack().Logger()
	}

	return logger
}

// Sample returns at most SampleSize leading items, for debug logging.
func Sample[T any](items []T) []T {
	return items[:min(len(items), SampleSize)]
}

// UnitRequests logs every invocation of a named unit of work.
type UnitRequests struct {
	logger zerolog.Logger
}

func NewUnitRequests(logger zerolog.Logger) *UnitRequests {
	return &UnitRequests{logger: logger}
}

// WrapUnit attaches a unit scoped logger to the context and logs the outcome and duration.
func (u *UnitRequests) WrapUnit(
	name string,
	next func(ctx context.Context, payload json.RawMessage) (any, error),
) func(ctx context.Context, payload json.RawMessage) (any, error) {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		started := time.Now()

		ctx = u.logger.With().
			Str("unit", name).
			Logger().WithContext(ctx)

		zerolog.Ctx(ctx).Debug().RawJSON("payload", compact(payload)).Msg("unit invoked")

		res, err := next(ctx, payload)
		if err != nil {
			zerolog.Ctx(ctx).Error().
				Err(err).
				Dur("duration", time.Since(started)).
				Msg("unit call")

			return res, err
		}

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("unit call")

		return res, nil
	}
}

func compact(payload json.RawMessage) []byte {
	if !json.Valid(payload) {
		b, _ := json.Marshal(string(payload))
		return b
	}
	return payload
}
