package invoke

import (
	"context"
	"time"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/store"
	"github.com/wolfeidau/orgpurge/internal/workflow"
)

// Unit names.
const (
	UnitPrepareDeleteOrg      = "prepare-data-for-delete-org"
	UnitGetDocsToDelete       = "get-docs-to-delete"
	UnitDeleteFiles           = "delete-files"
	UnitPrepareDeleteUserData = "prepare-data-for-delete-user-data"
	UnitDeleteRDBMSData       = "delete-rdbms-data"
	UnitDeleteOrg             = "delete-org"
)

// Default timeouts.
const (
	PrepareTimeout  = 30 * time.Second
	HeavyTimeout    = 10 * time.Minute
	WorkflowTimeout = 15 * time.Minute
)

// QueueRecord is one queue message handed to a unit by an invoker.
type QueueRecord struct {
	MessageID         string            `json:"messageId"`
	ReceiptHandle     string            `json:"receiptHandle,omitempty"`
	Body              string            `json:"body"`
	MessageAttributes map[string]string `json:"messageAttributes,omitempty"`
}

// QueueEvent is the payload of queue driven units.
type QueueEvent struct {
	Records []QueueRecord `json:"Records"`
}

// Messages converts the records to queue messages.
func (e QueueEvent) Messages() []queue.Message {
	msgs := make([]queue.Message, 0, len(e.Records))
	for _, r := range e.Records {
		msgs = append(msgs, queue.Message{
			ID:            r.MessageID,
			ReceiptHandle: r.ReceiptHandle,
			Body:          r.Body,
			Attributes:    r.MessageAttributes,
		})
	}
	return msgs
}

// Services are the components units call into. Nil services leave their units unregistered.
type Services struct {
	Resolver  *purge.TreeResolver
	Documents *purge.DocumentCoordinator
	UserData  *purge.UserDataCoordinator
	Store     store.OrganizationStore
	Workflow  *workflow.Workflow
}

// RegisterUnits registers every unit whose services are present.
func RegisterUnits(r *Registry, svc Services) {
	if svc.Resolver != nil {
		r.Register(UnitPrepareDeleteOrg, PrepareTimeout, Typed(svc.Resolver.Resolve))
	}

	if svc.Documents != nil {
		r.Register(UnitGetDocsToDelete, HeavyTimeout, Typed(svc.Documents.EnumerateAndEnqueue))
		r.Register(UnitDeleteFiles, HeavyTimeout, Typed(deleteFiles(svc.Documents)))
	}

	if svc.UserData != nil {
		r.Register(UnitPrepareDeleteUserData, HeavyTimeout, Typed(svc.UserData.Fanout))
	}

	if svc.Store != nil {
		r.Register(UnitDeleteRDBMSData, HeavyTimeout, Typed(deleteRDBMSData(svc.Store)))
	}

	if svc.Workflow != nil {
		r.Register(UnitDeleteOrg, WorkflowTimeout, Typed(svc.Workflow.Run))
	}
}

func deleteFiles(docs *purge.DocumentCoordinator) func(context.Context, QueueEvent) (*purge.DeleteFilesResult, error) {
	return func(ctx context.Context, event QueueEvent) (*purge.DeleteFilesResult, error) {
		failed := docs.ProcessBatch(ctx, event.Messages())
		return purge.NewDeleteFilesResult(failed), nil
	}
}

func deleteRDBMSData(st store.OrganizationStore) func(context.Context, models.PrepareOutput) (*store.PurgeResult, error) {
	return func(ctx context.Context, in models.PrepareOutput) (*store.PurgeResult, error) {
		ids := in.OrganizationIDs()
		if len(ids) == 0 {
			return nil, apperr.Validation("allOrgIds is required")
		}
		for _, id := range ids {
			if id == "" {
				return nil, apperr.Validation("allOrgIds contains an empty orgId")
			}
		}

		res, err := st.PurgeOrganizations(ctx, ids)
		if err != nil {
			return nil, apperr.Database(err)
		}
		return res, nil
	}
}
