// Package invoke maps named units of work to handlers taking and returning JSON.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/logger"
)

// Handler runs one unit of work.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Unit is a registered unit of work.
type Unit struct {
	Name    string
	Timeout time.Duration
	Handler Handler
}

// Result is the outcome of one invocation. Exactly one of Output and Error is set.
type Result struct {
	Unit   string          `json:"unit"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  *apperr.Payload `json:"error,omitempty"`
}

// Registry holds the units available to invokers.
type Registry struct {
	units    map[string]Unit
	requests *logger.UnitRequests
}

// NewRegistry creates an empty registry logging through requests.
func NewRegistry(requests *logger.UnitRequests) *Registry {
	return &Registry{
		units:    make(map[string]Unit),
		requests: requests,
	}
}

// Register adds a unit. Registering a name twice replaces the earlier unit.
func (r *Registry) Register(name string, timeout time.Duration, h Handler) {
	r.units[name] = Unit{
		Name:    name,
		Timeout: timeout,
		Handler: r.requests.WrapUnit(name, h),
	}
}

// Names returns the registered unit names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs the named unit with payload. A zero timeout uses the unit default.
//
// Handler failures are reported in Result.Error and also returned, so callers
// can both render the payload and set an exit status.
func (r *Registry) Invoke(ctx context.Context, name string, payload json.RawMessage, timeout time.Duration) (*Result, error) {
	unit, ok := r.units[name]
	if !ok {
		err := apperr.Validationf("unknown unit %q", name)
		return errorResult(name, err), err
	}

	if timeout == 0 {
		timeout = unit.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := unit.Handler(ctx, payload)
	if err != nil {
		return errorResult(name, err), err
	}

	data, err := json.Marshal(out)
	if err != nil {
		err = apperr.Application(fmt.Errorf("failed to marshal %s output: %w", name, err))
		return errorResult(name, err), err
	}

	return &Result{Unit: name, Output: data}, nil
}

func errorResult(name string, err error) *Result {
	p := apperr.AsPayload(err)
	return &Result{Unit: name, Error: &p}
}

// Typed adapts a function over decoded JSON values to a Handler. An empty payload
// decodes to the zero value of In.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in In
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, apperr.Wrap(apperr.KindValidation, err, "invalid payload")
			}
		}
		return fn(ctx, in)
	}
}
