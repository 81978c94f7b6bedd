package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/store"
)

func intPtr(v int) *int { return &v }

func seededStore() *OrganizationStore {
	st := NewOrganizationStore()

	st.AddOrganization(models.Organization{ID: "lead", Name: "Lead", Left: 1, Right: 10, ContractID: intPtr(7)})
	st.AddOrganization(models.Organization{ID: "child-b", Name: "B", Left: 6, Right: 9})
	st.AddOrganization(models.Organization{ID: "child-a", Name: "A", Left: 2, Right: 5})
	st.AddOrganization(models.Organization{ID: "sibling", Name: "Other", Left: 11, Right: 12})

	st.AddProfessional("lead", models.User{ID: "p-1", Username: "pro"})
	st.AddParticipant(7, models.User{ID: "u-1", Username: "alice"})
	st.AddParticipant(7, models.User{ID: "u-2", Username: "bob"})

	st.AddDocument("u-1", models.DocumentWithoutUser{ID: "d-1", URL: "docs/d-1"})
	st.AddDocument("u-1", models.DocumentWithoutUser{ID: "d-2", URL: "docs/d-2"})
	st.AddDocument("u-2", models.DocumentWithoutUser{ID: "d-3", URL: "docs/d-3"})
	st.AddDocument("p-1", models.DocumentWithoutUser{ID: "d-4", URL: "docs/d-4"})

	return st
}

func TestOrganizationStore_GetOrganization(t *testing.T) {
	ctx := context.Background()
	st := seededStore()

	org, err := st.GetOrganization(ctx, "lead")
	require.NoError(t, err)
	require.Equal(t, "Lead", org.Name)

	org.Name = "mutated"
	again, err := st.GetOrganization(ctx, "lead")
	require.NoError(t, err)
	require.Equal(t, "Lead", again.Name, "returned organization must be a copy")

	_, err = st.GetOrganization(ctx, "missing")
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)
}

func TestOrganizationStore_GetSubOrganizationsByInterval(t *testing.T) {
	st := seededStore()

	orgs, err := st.GetSubOrganizationsByInterval(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	require.Equal(t, models.OrganizationID("child-a"), orgs[0].ID)
	require.Equal(t, models.OrganizationID("child-b"), orgs[1].ID)
}

func TestOrganizationStore_GetUsersByOrgID(t *testing.T) {
	st := seededStore()

	users, err := st.GetUsersByOrgID(context.Background(), "lead")
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, models.UserTypeProfessional, users[0].Type)
	require.Equal(t, models.UserTypeParticipant, users[1].Type)
	require.Equal(t, models.UserTypeParticipant, users[2].Type)

	users, err = st.GetUsersByOrgID(context.Background(), "child-a")
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestOrganizationStore_GetDocumentsByOrgID(t *testing.T) {
	st := seededStore()

	docs, err := st.GetDocumentsByOrgID(context.Background(), "lead")
	require.NoError(t, err)
	require.Len(t, docs, 3, "only participant documents are returned")
	for _, d := range docs {
		require.Equal(t, models.UserTypeParticipant, d.User.Type)
	}
}

func TestOrganizationStore_FailOn(t *testing.T) {
	ctx := context.Background()
	st := seededStore()
	errBoom := errors.New("connection refused")

	st.FailOn(OpGetUsers, errBoom)
	_, err := st.GetUsersByOrgID(ctx, "lead")
	require.ErrorIs(t, err, errBoom)

	st.FailOn(OpGetUsers, nil)
	_, err = st.GetUsersByOrgID(ctx, "lead")
	require.NoError(t, err)
}

func TestOrganizationStore_PurgeOrganizations(t *testing.T) {
	ctx := context.Background()
	st := seededStore()

	res, err := st.PurgeOrganizations(ctx, []models.OrganizationID{"lead", "child-a"})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.TotalRows())

	_, err = st.GetOrganization(ctx, "lead")
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	res, err = st.PurgeOrganizations(ctx, []models.OrganizationID{"lead"})
	require.NoError(t, err)
	require.Zero(t, res.TotalRows())

	require.Equal(t, []models.OrganizationID{"lead", "child-a", "lead"}, st.Purged())
}
