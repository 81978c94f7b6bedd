package purge

import (
	"fmt"

	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/store/memory"
)

const (
	testQueueURL = "http://localhost:4566/000000000000/dev-delete_docs"
	testTopicARN = "arn:aws:sns:ap-southeast-2:000000000000:dev-delete_user_data"
	docsBucket   = "dev-docs"
	thumbsBucket = "dev-docs_tb"
)

func intPtr(v int) *int { return &v }

// exampleStore is org-1 with children org-2 and org-3, one professional,
// three participants and three documents owned by two of them.
func exampleStore() *memory.OrganizationStore {
	st := memory.NewOrganizationStore()

	st.AddOrganization(models.Organization{ID: "org-1", Name: "Lead Agency", Left: 1, Right: 10, ContractID: intPtr(1)})
	st.AddOrganization(models.Organization{ID: "org-2", Name: "Sub Agency A", Left: 2, Right: 5})
	st.AddOrganization(models.Organization{ID: "org-3", Name: "Sub Agency B", Left: 6, Right: 9})
	st.AddOrganization(models.Organization{ID: "org-9", Name: "Unrelated", Left: 11, Right: 20})

	st.AddProfessional("org-1", models.User{ID: "pro-1", Username: "case.worker"})
	st.AddParticipant(1, models.User{ID: "par-1", Username: "alice"})
	st.AddParticipant(1, models.User{ID: "par-2", Username: "bob"})
	st.AddParticipant(1, models.User{ID: "par-3", Username: "carol"})

	st.AddDocument("par-1", models.DocumentWithoutUser{ID: "d-1", Name: "id.pdf", URL: "par-1/id.pdf"})
	st.AddDocument("par-1", models.DocumentWithoutUser{ID: "d-2", Name: "lease.pdf", URL: "par-1/lease.pdf"})
	st.AddDocument("par-2", models.DocumentWithoutUser{ID: "d-3", Name: "birth.pdf", URL: "par-2/birth.pdf"})

	return st
}

// largeStore holds one organization whose participants own docsPerUser documents each.
func largeStore(users, docsPerUser int) *memory.OrganizationStore {
	st := memory.NewOrganizationStore()
	st.AddOrganization(models.Organization{ID: "big", Name: "Big", Left: 1, Right: 2, ContractID: intPtr(42)})

	for u := 0; u < users; u++ {
		id := models.UserID(fmt.Sprintf("u-%04d", u))
		st.AddParticipant(42, models.User{ID: id, Username: string(id)})
		for d := 0; d < docsPerUser; d++ {
			st.AddDocument(id, models.DocumentWithoutUser{
				ID:  fmt.Sprintf("%s-d-%d", id, d),
				URL: fmt.Sprintf("%s/%d.pdf", id, d),
			})
		}
	}

	return st
}
