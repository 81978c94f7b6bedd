package models

// UserID is the opaque identifier of a user.
type UserID string

func (id UserID) String() string {
	return string(id)
}

// UserType records which relation linked a user to an organization.
type UserType string

const (
	// UserTypeProfessional users are direct members of the organization.
	UserTypeProfessional UserType = "professional"
	// UserTypeParticipant users are linked through the organization's contract.
	UserTypeParticipant UserType = "participant"
)

// User is read from the relational store and never mutated by this service.
type User struct {
	ID          UserID   `json:"id"`
	Username    string   `json:"username"`
	AgencyID    *string  `json:"agencyId,omitempty"`
	OnboardedBy *string  `json:"onboardedBy,omitempty"`
	Type        UserType `json:"type"`
}

// CountUsers returns the number of users of the given type.
func CountUsers(users []User, userType UserType) int {
	n := 0
	for _, u := range users {
		if u.Type == userType {
			n++
		}
	}
	return n
}
