package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/logger"
)

func newTestRegistry() *Registry {
	return NewRegistry(logger.NewUnitRequests(zerolog.Nop()))
}

type echoInput struct {
	Name string `json:"name"`
}

func TestInvokeTyped(t *testing.T) {
	r := newTestRegistry()
	r.Register("echo", time.Second, Typed(func(ctx context.Context, in echoInput) (map[string]string, error) {
		return map[string]string{"hello": in.Name}, nil
	}))

	res, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"name":"org-1"}`), 0)
	require.NoError(t, err)
	require.Equal(t, "echo", res.Unit)
	require.Nil(t, res.Error)
	require.JSONEq(t, `{"hello":"org-1"}`, string(res.Output))
}

func TestInvokeErrors(t *testing.T) {
	r := newTestRegistry()
	r.Register("fail", time.Second, Typed(func(ctx context.Context, in echoInput) (any, error) {
		return nil, apperr.Database(errors.New("connection refused"))
	}))
	r.Register("echo", time.Second, Typed(func(ctx context.Context, in echoInput) (echoInput, error) {
		return in, nil
	}))

	tests := []struct {
		name     string
		unit     string
		payload  string
		wantKind apperr.Kind
	}{
		{name: "unknown unit", unit: "missing", payload: `{}`, wantKind: apperr.KindValidation},
		{name: "handler error", unit: "fail", payload: `{}`, wantKind: apperr.KindDatabase},
		{name: "malformed payload", unit: "echo", payload: `{"name":`, wantKind: apperr.KindValidation},
		{name: "wrong type", unit: "echo", payload: `{"name":1}`, wantKind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Invoke(context.Background(), tt.unit, json.RawMessage(tt.payload), 0)
			require.Error(t, err)
			require.Equal(t, tt.wantKind, apperr.KindOf(err))
			require.Nil(t, res.Output)
			require.Equal(t, tt.wantKind, res.Error.Kind)

			data, err := json.Marshal(res.Error)
			require.NoError(t, err)

			var raw map[string]string
			require.NoError(t, json.Unmarshal(data, &raw))
			require.Equal(t, string(tt.wantKind), raw["kind"])
			require.NotEmpty(t, raw["message"])
		})
	}
}

func TestInvokeEmptyPayload(t *testing.T) {
	r := newTestRegistry()
	r.Register("echo", time.Second, Typed(func(ctx context.Context, in echoInput) (echoInput, error) {
		return in, nil
	}))

	res, err := r.Invoke(context.Background(), "echo", nil, 0)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":""}`, string(res.Output))
}

func TestInvokeTimeout(t *testing.T) {
	r := newTestRegistry()
	r.Register("slow", time.Hour, Typed(func(ctx context.Context, in echoInput) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "finished", nil
		}
	}))

	started := time.Now()
	_, err := r.Invoke(context.Background(), "slow", nil, 20*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(started), 5*time.Second)
}

func TestNames(t *testing.T) {
	r := newTestRegistry()
	noop := Typed(func(ctx context.Context, in echoInput) (any, error) { return nil, nil })
	r.Register("b", 0, noop)
	r.Register("a", 0, noop)

	require.Equal(t, []string{"a", "b"}, r.Names())
}
