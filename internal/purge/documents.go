package purge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/batch"
	"github.com/wolfeidau/orgpurge/internal/blob"
	"github.com/wolfeidau/orgpurge/internal/logger"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/store"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// DocumentConfig configures a DocumentCoordinator.
type DocumentConfig struct {
	// QueueURL is the document purge queue written by phase 1.
	QueueURL string
	// Buckets are cleared of every key named in a message, in order.
	Buckets []string
	// Now stamps enqueued messages. Defaults to time.Now.
	Now func() time.Time
}

// DocumentCoordinator runs both phases of document purging. Phase 1 and phase 2
// only share the message schema and may run in different processes.
type DocumentCoordinator struct {
	store   store.OrganizationStore
	sender  queue.Sender
	deleter blob.Deleter
	cfg     DocumentConfig
}

// NewDocumentCoordinator creates a coordinator. Phase 1 needs st and sender; phase 2 needs deleter.
func NewDocumentCoordinator(st store.OrganizationStore, sender queue.Sender, deleter blob.Deleter, cfg DocumentConfig) *DocumentCoordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	buckets := make([]string, 0, len(cfg.Buckets))
	for _, b := range cfg.Buckets {
		if b != "" {
			buckets = append(buckets, b)
		}
	}
	cfg.Buckets = buckets

	return &DocumentCoordinator{
		store:   st,
		sender:  sender,
		deleter: deleter,
		cfg:     cfg,
	}
}

// EnumerateAndEnqueue groups the documents of an organization by owner and sends
// them to the queue in messages of up to DocumentGroupChunkSize groups.
func (c *DocumentCoordinator) EnumerateAndEnqueue(ctx context.Context, in models.OrgRef) (*EnqueueResult, error) {
	if in.OrgID == "" {
		return nil, apperr.Validation("orgId is required")
	}
	if c.cfg.QueueURL == "" {
		return nil, apperr.Validation("document queue is not configured")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "purge.EnumerateAndEnqueue")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", in.OrgID.String()))

	log := zerolog.Ctx(ctx).With().Str("processing_org_id", in.OrgID.String()).Logger()
	ctx = log.WithContext(ctx)

	docs, err := c.store.GetDocumentsByOrgID(ctx, in.OrgID)
	if err != nil {
		err = apperr.Database(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Failed to get documents for organization")
		return nil, err
	}

	grouped := models.GroupDocumentsByUserID(docs)
	groups := grouped.Groups()

	log.Info().Int("documents", len(docs)).Int("users", grouped.Len()).Msg("Grouped documents by owner")

	ids, err := batch.Dispatch(ctx, groups, DocumentGroupChunkSize, func(ctx context.Context, chunk []models.DocumentGroup) (string, error) {
		return c.enqueue(ctx, chunk)
	})
	if err != nil {
		err = apperr.Application(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Failed to enqueue documents")
		return nil, err
	}

	span.SetAttributes(attribute.Int("documents", len(docs)), attribute.Int("messages", len(ids)))

	return &EnqueueResult{
		Message:    "Documents placed in queue",
		TotalDocs:  len(docs),
		TotalUsers: grouped.Len(),
		MessageIDs: ids,
	}, nil
}

func (c *DocumentCoordinator) enqueue(ctx context.Context, groups []models.DocumentGroup) (string, error) {
	body, err := json.Marshal(DocumentBatchMessage{
		Message:   groups,
		Timestamp: c.cfg.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal document batch: %w", err)
	}

	id, err := c.sender.Send(ctx, c.cfg.QueueURL, body)
	if err != nil {
		return "", err
	}

	telemetry.GetMetrics().MessagesSentTotal.Add(ctx, 1)
	zerolog.Ctx(ctx).Info().Str("message_id", id).Int("groups", len(groups)).Msg("Message sent to queue")

	return id, nil
}

// ProcessQueueMessage deletes every document named in one queue message from every
// configured bucket, BlobDeleteChunkSize keys per call. Any failed call fails the message.
func (c *DocumentCoordinator) ProcessQueueMessage(ctx context.Context, msg queue.Message) error {
	log := zerolog.Ctx(ctx).With().Str("message_id", msg.ID).Logger()
	ctx = log.WithContext(ctx)

	if len(c.cfg.Buckets) == 0 {
		return apperr.Validation("no document buckets are configured")
	}

	payload, err := queue.Decode(queue.Unwrap(msg))
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "unreadable message body")
	}

	var body DocumentBatchMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "malformed document batch")
	}

	if len(body.Message) == 0 {
		log.Info().Msg("No documents to delete")
		return nil
	}

	pairs := models.Flatten(body.Message)
	log.Info().
		Int("groups", len(body.Message)).
		Int("documents", len(pairs)).
		Interface("sample", logger.Sample(body.Message)).
		Msg("Deleting documents; sample of 10")

	ctx, span := telemetry.Tracer().Start(ctx, "purge.ProcessQueueMessage")
	defer span.End()
	span.SetAttributes(attribute.Int("documents", len(pairs)))

	_, err = batch.Dispatch(ctx, pairs, BlobDeleteChunkSize, func(ctx context.Context, chunk []models.FlattenedDocumentUser) (int, error) {
		return c.deleteFiles(ctx, chunk)
	})
	if err != nil {
		err = apperr.Application(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *DocumentCoordinator) deleteFiles(ctx context.Context, chunk []models.FlattenedDocumentUser) (int, error) {
	keys := make([]string, 0, len(chunk))
	for _, pair := range chunk {
		keys = append(keys, pair.Document.URL)
	}

	deleted := 0
	for _, bucket := range c.cfg.Buckets {
		res, err := c.deleter.BulkDelete(ctx, bucket, keys)
		if err != nil {
			return 0, fmt.Errorf("bulk delete from %s: %w", bucket, err)
		}
		deleted += res.Deleted
	}

	telemetry.GetMetrics().BlobKeysDeletedTotal.Add(ctx, int64(deleted))
	return deleted, nil
}

// ProcessBatch runs ProcessQueueMessage for each message and returns the ids of the
// messages that failed. Messages are independent: one failure does not stop the rest.
func (c *DocumentCoordinator) ProcessBatch(ctx context.Context, msgs []queue.Message) []string {
	var failed []string

	for _, msg := range msgs {
		if err := c.ProcessQueueMessage(ctx, msg); err != nil {
			zerolog.Ctx(ctx).Error().
				Err(err).
				Str("message_id", msg.ID).
				Str("kind", string(apperr.KindOf(err))).
				Msg("Failed to process document batch message")
			failed = append(failed, msg.ID)
		}
	}

	return failed
}
