package purge

import (
	"time"

	"github.com/wolfeidau/orgpurge/internal/models"
)

// Chunk sizes used when dispatching work.
const (
	// DocumentGroupChunkSize is the number of owner groups per queue message.
	DocumentGroupChunkSize = 500
	// BlobDeleteChunkSize is the number of keys per bulk delete call.
	BlobDeleteChunkSize = 200
	// UserChunkSize is the number of users per topic message.
	UserChunkSize = 500
)

// DocumentBatchMessage is the body of a document purge queue message.
type DocumentBatchMessage struct {
	Message   []models.DocumentGroup `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
}

// UserBatchMessage is the body of a user data topic message.
type UserBatchMessage struct {
	Users []models.User `json:"users"`
}

// EnqueueResult is returned by DocumentCoordinator.EnumerateAndEnqueue.
type EnqueueResult struct {
	Message    string   `json:"message"`
	TotalDocs  int      `json:"totalDocs"`
	TotalUsers int      `json:"totalUsers"`
	MessageIDs []string `json:"messageIds"`
}

// BatchItemFailure names one queue message the invoker should redeliver.
type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// DeleteFilesResult is returned by DocumentCoordinator.ProcessBatch callers. It
// uses the partial batch response shape of an SQS event source mapping.
type DeleteFilesResult struct {
	Message           string             `json:"message"`
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}

// NewDeleteFilesResult reports the failed message ids. Failures are always a
// list, empty when every message succeeded.
func NewDeleteFilesResult(failedIDs []string) *DeleteFilesResult {
	res := &DeleteFilesResult{
		Message:           "Files deleted",
		BatchItemFailures: make([]BatchItemFailure, 0, len(failedIDs)),
	}
	for _, id := range failedIDs {
		res.BatchItemFailures = append(res.BatchItemFailures, BatchItemFailure{ItemIdentifier: id})
	}
	if len(failedIDs) > 0 {
		res.Message = "Some files failed to delete"
	}
	return res
}

// FanoutResult is returned by UserDataCoordinator.Fanout.
type FanoutResult struct {
	TotalUsers int      `json:"totalUsers"`
	MessageIDs []string `json:"messageIds"`
}
