package models

// PrepareInput starts a deletion run for a lead organization.
type PrepareInput struct {
	LeadAgencyID OrganizationID `json:"leadAgencyId"`
}

// UserTotals counts users by relation.
type UserTotals struct {
	Participants  int `json:"participants"`
	Professionals int `json:"professionals"`
}

// ParticipantDataTotals counts data owned by participants.
type ParticipantDataTotals struct {
	Documents int `json:"documents"`
}

// Totals summarises what a deletion run will remove.
type Totals struct {
	Users           UserTotals            `json:"users"`
	ParticipantData ParticipantDataTotals `json:"participantData"`
	Services        int                   `json:"services"`
	SubAgencies     int                   `json:"subAgencies"`
	Facilities      int                   `json:"facilities"`
}

// PrepareOutput is the resolved subtree of a lead organization.
type PrepareOutput struct {
	LeadAgency  Organization   `json:"leadAgency"`
	SubAgencies []Organization `json:"subAgencies"`
	Totals      Totals         `json:"totals"`
	AllOrgIDs   []OrgRef       `json:"allOrgIds"`
}

// OrganizationIDs returns the ids of AllOrgIDs in order.
func (p *PrepareOutput) OrganizationIDs() []OrganizationID {
	ids := make([]OrganizationID, 0, len(p.AllOrgIDs))
	for _, ref := range p.AllOrgIDs {
		ids = append(ids, ref.OrgID)
	}
	return ids
}
