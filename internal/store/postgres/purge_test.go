package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPurgePlan(t *testing.T) {
	t.Run("embedded plan", func(t *testing.T) {
		plan, err := LoadPurgePlan(nil)
		require.NoError(t, err)
		require.NotEmpty(t, plan.Steps)

		names := make([]string, 0, len(plan.Steps))
		for _, s := range plan.Steps {
			names = append(names, s.Name)
		}
		require.Equal(t, "organizations", names[len(names)-1], "organizations must be removed last")
		require.Less(t, indexOf(names, "participant_documents"), indexOf(names, "participants"))
		require.Less(t, indexOf(names, "memberships"), indexOf(names, "users"))
	})

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "no steps", yaml: "steps: []", wantErr: "no steps"},
		{name: "missing name", yaml: "steps:\n  - sql: DELETE FROM x", wantErr: "has no name"},
		{name: "missing sql", yaml: "steps:\n  - name: x", wantErr: "has no sql"},
		{name: "duplicate", yaml: "steps:\n  - {name: x, sql: a}\n  - {name: x, sql: b}", wantErr: "duplicated"},
		{name: "malformed", yaml: "steps: [", wantErr: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPurgePlan([]byte(tt.yaml))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestStoreConfigDefaults(t *testing.T) {
	cfg := &StoreConfig{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 30, cfg.QueryTimeoutSeconds)
	require.EqualValues(t, 600, cfg.PurgeTimeoutSeconds)

	bad := &StoreConfig{QueryTimeoutSeconds: -1}
	require.Error(t, bad.Validate())
}
