package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/store"
)

// Operation names accepted by FailOn.
const (
	OpGetOrganization     = "GetOrganization"
	OpGetSubOrganizations = "GetSubOrganizationsByInterval"
	OpGetUsers            = "GetUsersByOrgID"
	OpGetDocuments        = "GetDocumentsByOrgID"
	OpPurge               = "PurgeOrganizations"
)

var _ store.OrganizationStore = (*OrganizationStore)(nil)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type OrganizationStore struct {
	mu sync.RWMutex

	organizations map[models.OrganizationID]*models.Organization
	members       map[models.OrganizationID][]models.UserID // org_id -> professionals
	participants  map[int][]models.UserID                   // contract_id -> participants
	users         map[models.UserID]*models.User
	documents     map[models.UserID][]models.DocumentWithoutUser

	failures map[string]error
	purged   []models.OrganizationID
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		organizations: make(map[models.OrganizationID]*models.Organization),
		members:       make(map[models.OrganizationID][]models.UserID),
		participants:  make(map[int][]models.UserID),
		users:         make(map[models.UserID]*models.User),
		documents:     make(map[models.UserID][]models.DocumentWithoutUser),
		failures:      make(map[string]error),
	}
}

// AddOrganization stores an organization.
func (s *OrganizationStore) AddOrganization(org models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := org
	s.organizations[org.ID] = &clone
}

// AddProfessional links a user directly to an organization.
func (s *OrganizationStore) AddProfessional(orgID models.OrganizationID, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addUser(user)
	s.members[orgID] = append(s.members[orgID], user.ID)
}

// AddParticipant links a user to a contract.
func (s *OrganizationStore) AddParticipant(contractID int, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addUser(user)
	s.participants[contractID] = append(s.participants[contractID], user.ID)
}

// AddDocument stores a document owned by a user.
func (s *OrganizationStore) AddDocument(owner models.UserID, doc models.DocumentWithoutUser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[owner] = append(s.documents[owner], doc)
}

// FailOn makes every subsequent call to op return err. A nil err clears it.
func (s *OrganizationStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Purged returns every organization id passed to PurgeOrganizations, in call order.
func (s *OrganizationStore) Purged() []models.OrganizationID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.purged)
}

func (s *OrganizationStore) addUser(user models.User) {
	if _, exists := s.users[user.ID]; exists {
		return
	}
	clone := user
	s.users[user.ID] = &clone
}

// GetOrganization retrieves an organization by ID.
func (s *OrganizationStore) GetOrganization(ctx context.Context, orgID models.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpGetOrganization]; err != nil {
		return nil, err
	}

	org, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// GetSubOrganizationsByInterval returns organizations nested inside (left, right].
func (s *OrganizationStore) GetSubOrganizationsByInterval(ctx context.Context, left, right int) ([]models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpGetSubOrganizations]; err != nil {
		return nil, err
	}

	orgs := []models.Organization{}
	for _, org := range s.organizations {
		if org.Left > left && org.Right <= right {
			orgs = append(orgs, *org)
		}
	}

	sort.Slice(orgs, func(i, j int) bool {
		return orgs[i].Left < orgs[j].Left
	})

	return orgs, nil
}

// GetUsersByOrgID returns professionals followed by participants.
func (s *OrganizationStore) GetUsersByOrgID(ctx context.Context, orgID models.OrganizationID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpGetUsers]; err != nil {
		return nil, err
	}

	users := []models.User{}
	for _, id := range s.members[orgID] {
		u := *s.users[id]
		u.Type = models.UserTypeProfessional
		users = append(users, u)
	}

	for _, id := range s.participantsOf(orgID) {
		u := *s.users[id]
		u.Type = models.UserTypeParticipant
		users = append(users, u)
	}

	return users, nil
}

// GetDocumentsByOrgID returns the documents of every participant of the organization.
func (s *OrganizationStore) GetDocumentsByOrgID(ctx context.Context, orgID models.OrganizationID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[OpGetDocuments]; err != nil {
		return nil, err
	}

	docs := []models.Document{}
	for _, id := range s.participantsOf(orgID) {
		owner := *s.users[id]
		owner.Type = models.UserTypeParticipant
		for _, d := range s.documents[id] {
			docs = append(docs, models.Document{ID: d.ID, Name: d.Name, URL: d.URL, User: owner})
		}
	}

	return docs, nil
}

// PurgeOrganizations removes the organizations and records the call.
func (s *OrganizationStore) PurgeOrganizations(ctx context.Context, orgIDs []models.OrganizationID) (*store.PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[OpPurge]; err != nil {
		return nil, err
	}

	var removed int64
	for _, id := range orgIDs {
		if _, exists := s.organizations[id]; exists {
			delete(s.organizations, id)
			removed++
		}
		delete(s.members, id)
		s.purged = append(s.purged, id)
	}

	return &store.PurgeResult{
		Steps: []store.PurgeStepResult{{Name: "organizations", RowsAffected: removed}},
	}, nil
}

// participantsOf must be called with s.mu held.
func (s *OrganizationStore) participantsOf(orgID models.OrganizationID) []models.UserID {
	org, exists := s.organizations[orgID]
	if !exists || org.ContractID == nil {
		return nil
	}
	return s.participants[*org.ContractID]
}
