package purge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/batch"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/store"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// UserDataCoordinator publishes the users of an organization to the user data topic.
// Subscribers consume the topic independently and are never awaited.
type UserDataCoordinator struct {
	store     store.OrganizationStore
	publisher queue.Publisher
	topicARN  string
}

// NewUserDataCoordinator creates a coordinator publishing to topicARN.
func NewUserDataCoordinator(st store.OrganizationStore, publisher queue.Publisher, topicARN string) *UserDataCoordinator {
	return &UserDataCoordinator{
		store:     st,
		publisher: publisher,
		topicARN:  topicARN,
	}
}

// Fanout publishes the users of an organization in messages of up to UserChunkSize users.
func (c *UserDataCoordinator) Fanout(ctx context.Context, in models.OrgRef) (*FanoutResult, error) {
	if in.OrgID == "" {
		return nil, apperr.Validation("orgId is required")
	}
	if c.topicARN == "" {
		return nil, apperr.Validation("user data topic is not configured")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "purge.Fanout")
	defer span.End()
	span.SetAttributes(attribute.String("org_id", in.OrgID.String()))

	log := zerolog.Ctx(ctx).With().Str("processing_org_id", in.OrgID.String()).Logger()
	ctx = log.WithContext(ctx)

	users, err := c.store.GetUsersByOrgID(ctx, in.OrgID)
	if err != nil {
		err = apperr.Database(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Failed to get users for organization")
		return nil, err
	}

	log.Info().Int("users", len(users)).Msg("Publishing users")

	ids, err := batch.Dispatch(ctx, users, UserChunkSize, func(ctx context.Context, chunk []models.User) (string, error) {
		return c.publish(ctx, chunk)
	})
	if err != nil {
		err = apperr.Application(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Msg("Failed to publish users")
		return nil, err
	}

	return &FanoutResult{TotalUsers: len(users), MessageIDs: ids}, nil
}

func (c *UserDataCoordinator) publish(ctx context.Context, users []models.User) (string, error) {
	body, err := json.Marshal(UserBatchMessage{Users: users})
	if err != nil {
		return "", fmt.Errorf("failed to marshal user batch: %w", err)
	}

	id, err := c.publisher.Publish(ctx, c.topicARN, body)
	if err != nil {
		return "", err
	}

	telemetry.GetMetrics().MessagesPublishedTotal.Add(ctx, 1)
	zerolog.Ctx(ctx).Info().Str("message_id", id).Int("users", len(users)).Msg("Message published to topic")

	return id, nil
}
