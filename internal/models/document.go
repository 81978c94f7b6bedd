package models

// Document is a stored file owned by a user. URL doubles as the blob storage key.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	User User   `json:"user"`
}

// DocumentWithoutUser is a Document once it has been grouped under its owner.
type DocumentWithoutUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// WithoutUser drops the owner from the document.
func (d Document) WithoutUser() DocumentWithoutUser {
	return DocumentWithoutUser{ID: d.ID, Name: d.Name, URL: d.URL}
}

// DocumentGroup holds all documents owned by one user.
type DocumentGroup struct {
	User      User                  `json:"user"`
	Documents []DocumentWithoutUser `json:"documents"`
}

// FlattenedDocumentUser pairs a single document with its owner.
type FlattenedDocumentUser struct {
	User     User                `json:"user"`
	Document DocumentWithoutUser `json:"document"`
}

// GroupedDocuments maps an owner id to the owner's documents.
//
// Every document under key K is owned by K, and the union of all groups is
// exactly the document list it was built from.
type GroupedDocuments struct {
	groups map[UserID]*DocumentGroup
	order  []UserID
}

// GroupDocumentsByUserID partitions documents by owner.
func GroupDocumentsByUserID(documents []Document) *GroupedDocuments {
	g := &GroupedDocuments{
		groups: make(map[UserID]*DocumentGroup),
	}

	for _, doc := range documents {
		group, ok := g.groups[doc.User.ID]
		if !ok {
			group = &DocumentGroup{User: doc.User}
			g.groups[doc.User.ID] = group
			g.order = append(g.order, doc.User.ID)
		}
		group.Documents = append(group.Documents, doc.WithoutUser())
	}

	return g
}

// Len returns the number of distinct owners.
func (g *GroupedDocuments) Len() int {
	return len(g.order)
}

// Get returns the group for an owner.
func (g *GroupedDocuments) Get(id UserID) (*DocumentGroup, bool) {
	group, ok := g.groups[id]
	return group, ok
}

// Groups returns the groups in the order their owners were first seen.
func (g *GroupedDocuments) Groups() []DocumentGroup {
	out := make([]DocumentGroup, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.groups[id])
	}
	return out
}

// Flatten expands groups back into one entry per document.
func Flatten(groups []DocumentGroup) []FlattenedDocumentUser {
	var out []FlattenedDocumentUser
	for _, group := range groups {
		for _, doc := range group.Documents {
			out = append(out, FlattenedDocumentUser{User: group.User, Document: doc})
		}
	}
	return out
}
