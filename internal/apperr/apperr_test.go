package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "validation",
			err:      Validation("orgId is required"),
			wantKind: KindValidation,
			wantMsg:  "orgId is required",
		},
		{
			name:     "database",
			err:      Database(base),
			wantKind: KindDatabase,
			wantMsg:  "connection refused",
		},
		{
			name:     "application",
			err:      Application(base),
			wantKind: KindApplication,
			wantMsg:  "connection refused",
		},
		{
			name:     "wrap with message",
			err:      Wrap(KindDatabase, base, "failed to get organization"),
			wantKind: KindDatabase,
			wantMsg:  "failed to get organization: connection refused",
		},
		{
			name:     "unclassified defaults to application",
			err:      fmt.Errorf("boom"),
			wantKind: KindApplication,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantKind, KindOf(tt.err))
			p := AsPayload(tt.err)
			require.Equal(t, tt.wantKind, p.Kind)
			require.Equal(t, tt.wantMsg, p.Message)
		})
	}
}

func TestClassifyKeepsExistingKind(t *testing.T) {
	err := Validation("lead agencyId is required")

	require.Same(t, err, Application(err))
	require.Equal(t, KindValidation, KindOf(Database(fmt.Errorf("outer: %w", err))))
	require.True(t, Is(fmt.Errorf("outer: %w", err), KindValidation))
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("not found")
	err := Database(fmt.Errorf("query: %w", sentinel))

	require.ErrorIs(t, err, sentinel)
	require.Nil(t, Application(nil))
	require.False(t, Is(nil, KindApplication))
}
