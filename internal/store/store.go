package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/orgpurge/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound = errors.New("organization not found")
)

// OrganizationStore is the read side of the relational store plus the final
// relational purge. Implementations must be safe for concurrent use.
type OrganizationStore interface {
	// GetOrganization returns the organization with the given id, including its interval bounds.
	// Returns ErrOrganizationNotFound if it doesn't exist.
	GetOrganization(ctx context.Context, orgID models.OrganizationID) (*models.Organization, error)

	// GetSubOrganizationsByInterval returns every organization with left > left and right <= right,
	// ordered by left bound. The organization owning the interval is never included.
	GetSubOrganizationsByInterval(ctx context.Context, left, right int) ([]models.Organization, error)

	// GetUsersByOrgID returns the professionals (direct members) followed by the participants
	// (linked through the organization's contract). Users holding both relations appear twice.
	GetUsersByOrgID(ctx context.Context, orgID models.OrganizationID) ([]models.User, error)

	// GetDocumentsByOrgID returns every document owned by a participant of the organization.
	GetDocumentsByOrgID(ctx context.Context, orgID models.OrganizationID) ([]models.Document, error)

	// PurgeOrganizations removes the relational data of the given organizations in a single
	// transaction. Purging an organization that no longer exists is not an error.
	PurgeOrganizations(ctx context.Context, orgIDs []models.OrganizationID) (*PurgeResult, error)
}

// PurgeResult reports rows removed per purge step.
type PurgeResult struct {
	Steps []PurgeStepResult `json:"steps"`
}

// PurgeStepResult is the outcome of one purge statement.
type PurgeStepResult struct {
	Name         string `json:"name"`
	RowsAffected int64  `json:"rowsAffected"`
}

// TotalRows returns the number of rows removed across all steps.
func (r *PurgeResult) TotalRows() int64 {
	var total int64
	for _, s := range r.Steps {
		total += s.RowsAffected
	}
	return total
}
