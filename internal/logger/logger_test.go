package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	tests := []struct {
		name  string
		dev   bool
		level string
		want  zerolog.Level
	}{
		{name: "default", want: zerolog.InfoLevel},
		{name: "dev", dev: true, want: zerolog.DebugLevel},
		{name: "explicit", level: "warn", want: zerolog.WarnLevel},
		{name: "unknown falls back", level: "chatty", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Setup(tt.dev, tt.level).GetLevel())
		})
	}
}

func TestSample(t *testing.T) {
	require.Len(t, Sample(make([]int, 25)), SampleSize)
	require.Equal(t, []int{1, 2}, Sample([]int{1, 2}))
	require.Empty(t, Sample[int](nil))
}

func TestWrapUnit(t *testing.T) {
	var buf bytes.Buffer
	u := NewUnitRequests(zerolog.New(&buf))

	handler := u.WrapUnit("delete-files", func(ctx context.Context, payload json.RawMessage) (any, error) {
		zerolog.Ctx(ctx).Info().Msg("inside")
		return "ok", nil
	})

	res, err := handler(context.Background(), json.RawMessage(`{"orgId":"1"}`))
	require.NoError(t, err)
	require.Equal(t, "ok", res)
	require.Contains(t, buf.String(), `"unit":"delete-files"`)
	require.Contains(t, buf.String(), `"message":"inside"`)

	buf.Reset()
	errBoom := errors.New("boom")
	failing := u.WrapUnit("delete-org", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return nil, errBoom
	})

	_, err = failing(context.Background(), nil)
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, buf.String(), `"level":"error"`)
}
