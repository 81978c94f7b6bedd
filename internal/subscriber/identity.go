package subscriber

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cogtypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/logger"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// CognitoAPI is the subset of the Cognito user pool client used by IdentityPurger.
type CognitoAPI interface {
	AdminDeleteUser(ctx context.Context, params *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
}

// IdentityPurger deletes users from an identity provider user pool.
// The user id is the pool username.
type IdentityPurger struct {
	client     CognitoAPI
	userPoolID string
}

// NewIdentityPurger creates a purger for the given user pool.
func NewIdentityPurger(client CognitoAPI, userPoolID string) *IdentityPurger {
	return &IdentityPurger{client: client, userPoolID: userPoolID}
}

// DeleteUsers removes every user from the pool. Users already gone count as deleted.
// All users are attempted; the first error is returned.
func (p *IdentityPurger) DeleteUsers(ctx context.Context, users []models.User) error {
	if p.userPoolID == "" {
		return apperr.Validation("user pool is not configured")
	}

	log := zerolog.Ctx(ctx)
	log.Debug().Interface("sample", logger.Sample(users)).Msg("Deleting identities; sample of 10")

	var firstErr error
	deleted := 0

	for _, u := range users {
		_, err := p.client.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
			UserPoolId: aws.String(p.userPoolID),
			Username:   aws.String(u.ID.String()),
		})
		if err != nil {
			var notFound *cogtypes.UserNotFoundException
			if errors.As(err, &notFound) {
				log.Debug().Str("user_id", u.ID.String()).Msg("Identity already deleted")
				deleted++
				continue
			}

			log.Error().Err(err).Str("user_id", u.ID.String()).Bool("throttled", isThrottle(err)).Msg("Failed to delete identity")
			if firstErr == nil {
				firstErr = apperr.Application(fmt.Errorf("delete identity %s: %w", u.ID, err))
			}
			continue
		}
		deleted++
	}

	telemetry.GetMetrics().IdentityUsersDeletedTotal.Add(ctx, int64(deleted))

	return firstErr
}

// ProcessBatch implements queue.BatchHandler.
func (p *IdentityPurger) ProcessBatch(ctx context.Context, msgs []queue.Message) []string {
	return processBatch(ctx, "identity", msgs, p.DeleteUsers)
}
