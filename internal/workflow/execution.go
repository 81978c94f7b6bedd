package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/store"
)

// State is a step of a deletion run.
type State string

const (
	StatePrepare             State = "Prepare"
	StatePerOrgFanout        State = "PerOrgFanout"
	StatePurgeRelationalData State = "PurgeRelationalData"
	StateDone                State = "Done"
	StateFailed              State = "Failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// PurgePolicy decides what the relational purge does after some per organization branch failed.
type PurgePolicy string

const (
	// PolicyAbort skips the relational purge when any branch failed.
	PolicyAbort PurgePolicy = "abort"
	// PolicyAlways purges the whole subtree even when branches failed.
	PolicyAlways PurgePolicy = "always"
	// PolicySucceededOnly purges only organizations whose branches all succeeded.
	PolicySucceededOnly PurgePolicy = "succeeded-only"
)

// ParsePurgePolicy validates a policy name. The empty string is PolicyAbort.
func ParsePurgePolicy(s string) (PurgePolicy, error) {
	switch p := PurgePolicy(s); p {
	case "":
		return PolicyAbort, nil
	case PolicyAbort, PolicyAlways, PolicySucceededOnly:
		return p, nil
	default:
		return "", apperr.Validationf("unknown purge policy %q", s)
	}
}

// Transition records one state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// BranchResult is the outcome of both branches for one organization.
type BranchResult struct {
	OrgID        models.OrganizationID `json:"orgId"`
	Documents    *purge.EnqueueResult  `json:"documents,omitempty"`
	DocumentsErr *apperr.Payload       `json:"documentsError,omitempty"`
	UserData     *purge.FanoutResult   `json:"userData,omitempty"`
	UserDataErr  *apperr.Payload       `json:"userDataError,omitempty"`

	documentsErr error
	userDataErr  error
}

// Succeeded reports whether both branches succeeded.
func (b *BranchResult) Succeeded() bool {
	return b.documentsErr == nil && b.userDataErr == nil
}

// Err returns the first branch error, documents before user data.
func (b *BranchResult) Err() error {
	if b.documentsErr != nil {
		return b.documentsErr
	}
	return b.userDataErr
}

// Execution is the record of one deletion run.
type Execution struct {
	ID           uuid.UUID               `json:"id"`
	LeadAgencyID models.OrganizationID   `json:"leadAgencyId"`
	Policy       PurgePolicy             `json:"policy"`
	State        State                   `json:"state"`
	History      []Transition            `json:"history"`
	Prepare      *models.PrepareOutput   `json:"prepare,omitempty"`
	Branches     []BranchResult          `json:"branches,omitempty"`
	Purged       []models.OrganizationID `json:"purged,omitempty"`
	Purge        *store.PurgeResult      `json:"purge,omitempty"`
	Error        *apperr.Payload         `json:"error,omitempty"`
	StartedAt    time.Time               `json:"startedAt"`
	FinishedAt   time.Time               `json:"finishedAt,omitzero"`

	err error
}

// Err returns the error that moved the run to StateFailed.
func (e *Execution) Err() error {
	return e.err
}

// FailedBranches returns the branches with at least one failure.
func (e *Execution) FailedBranches() []BranchResult {
	var out []BranchResult
	for _, b := range e.Branches {
		if !b.Succeeded() {
			out = append(out, b)
		}
	}
	return out
}

func (e *Execution) transition(to State, at time.Time) error {
	if e.State.Terminal() {
		return fmt.Errorf("execution %s is already %s", e.ID, e.State)
	}
	e.History = append(e.History, Transition{From: e.State, To: to, At: at})
	e.State = to
	return nil
}
