package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name      string
		files     fstest.MapFS
		wantNames []string
		wantErr   string
	}{
		{
			name: "ordered by version",
			files: fstest.MapFS{
				"m/10_purge_indexes.sql":  {Data: []byte("CREATE INDEX a ON b (c);")},
				"m/2_documents.sql":       {Data: []byte("CREATE TABLE documents ();")},
				"m/1_initial_schema.sql":  {Data: []byte("CREATE TABLE organizations ();")},
				"m/README.md":             {Data: []byte("notes")},
				"m/draft.sql":             {Data: []byte("SELECT 1;")},
				"m/next_organization.sql": {Data: []byte("SELECT 1;")},
			},
			wantNames: []string{"1_initial_schema.sql", "2_documents.sql", "10_purge_indexes.sql"},
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"m/1_initial_schema.sql": {Data: []byte("SELECT 1;")},
				"m/1_documents.sql":      {Data: []byte("SELECT 1;")},
			},
			wantErr: "share version 1",
		},
		{
			name:    "missing directory",
			files:   fstest.MapFS{},
			wantErr: "failed to read migrations directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadMigrations(tt.files, "m")
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			names := make([]string, 0, len(got))
			for _, m := range got {
				names = append(names, m.name)
			}
			require.Equal(t, tt.wantNames, names)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := loadMigrations(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	require.Equal(t, 1, got[0].version)
	require.Contains(t, got[0].sql, "CREATE TABLE IF NOT EXISTS organization (")
}
