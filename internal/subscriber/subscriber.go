// Package subscriber holds the workers that consume user data topic subscriptions.
// Each worker removes one kind of per-user data and never reports back to the workflow.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// messageHandler processes the users carried by one message.
type messageHandler func(ctx context.Context, users []models.User) error

// DecodeUsers reads the users from a topic message delivered raw or inside a notification envelope.
func DecodeUsers(msg queue.Message) ([]models.User, error) {
	payload, err := queue.Decode(queue.Unwrap(msg))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "unreadable message body")
	}

	var body purge.UserBatchMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "malformed user batch")
	}

	return body.Users, nil
}

// processBatch runs handle for each message and returns the ids of those that failed.
func processBatch(ctx context.Context, worker string, msgs []queue.Message, handle messageHandler) []string {
	metrics := telemetry.GetMetrics()
	var failed []string

	for _, msg := range msgs {
		log := zerolog.Ctx(ctx).With().Str("worker", worker).Str("message_id", msg.ID).Logger()
		msgCtx := log.WithContext(ctx)

		users, err := DecodeUsers(msg)
		if err == nil {
			err = handle(msgCtx, users)
		}

		if err != nil {
			metrics.MessagesFailedTotal.Add(ctx, 1)
			log.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("Failed to process user batch message")
			failed = append(failed, msg.ID)
			continue
		}

		metrics.MessagesProcessedTotal.Add(ctx, 1)
		log.Info().Int("users", len(users)).Msg("Processed user batch message")
	}

	return failed
}

// apiErrorCode returns the service error code of an AWS API error, or "".
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isThrottle(err error) bool {
	switch apiErrorCode(err) {
	case "ThrottlingException", "ProvisionedThroughputExceededException",
		"RequestLimitExceeded", "TooManyRequestsException":
		return true
	}
	return false
}
