package models

// OrganizationID is the opaque identifier of an organization.
type OrganizationID string

func (id OrganizationID) String() string {
	return string(id)
}

// Organization is a node in the organization forest.
//
// The forest is encoded as nested intervals: an organization's [Left, Right]
// range strictly contains the ranges of all of its descendants, and sibling
// ranges never overlap.
type Organization struct {
	ID         OrganizationID `json:"id"`
	Name       string         `json:"name"`
	Left       int            `json:"left"`
	Right      int            `json:"right"`
	ContractID *int           `json:"contractId,omitempty"`
}

// Contains reports whether other is a descendant of o.
func (o Organization) Contains(other Organization) bool {
	return o.Left < other.Left && other.Right <= o.Right
}

// OrgRef is the per-organization input of the fan-out step.
type OrgRef struct {
	OrgID OrganizationID `json:"orgId"`
}
