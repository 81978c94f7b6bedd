package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/batch"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// Key attributes of the user data table.
const (
	PartitionKeyAttribute = "user_id"
	SortKeyAttribute      = "sk"
)

// MaxWriteItems is the most requests BatchWriteItem accepts.
const MaxWriteItems = 25

var errUnprocessedItems = errors.New("unprocessed items remain")

// DynamoDBAPI is the subset of the DynamoDB client used by NoSQLPurger.
type DynamoDBAPI interface {
	dynamodb.QueryAPIClient
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// NoSQLConfig configures a NoSQLPurger.
type NoSQLConfig struct {
	TableName string
	// MaxAttempts bounds BatchWriteItem calls per batch, including retries of unprocessed items.
	MaxAttempts uint
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
	// MaxInterval caps the retry delay.
	MaxInterval time.Duration
}

func (c *NoSQLConfig) applyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 8
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 5 * time.Second
	}
}

type itemKey struct {
	UserID string `dynamodbav:"user_id"`
	SK     string `dynamodbav:"sk"`
}

// NoSQLPurger deletes every item stored under a user's partition key.
type NoSQLPurger struct {
	client DynamoDBAPI
	cfg    NoSQLConfig
}

// NewNoSQLPurger creates a purger for cfg.TableName.
func NewNoSQLPurger(client DynamoDBAPI, cfg NoSQLConfig) *NoSQLPurger {
	cfg.applyDefaults()
	return &NoSQLPurger{client: client, cfg: cfg}
}

// DeleteUsers deletes the items of every user, MaxWriteItems per batch write.
func (p *NoSQLPurger) DeleteUsers(ctx context.Context, users []models.User) error {
	if p.cfg.TableName == "" {
		return apperr.Validation("user data table is not configured")
	}

	// A user holding both relations is listed twice. BatchWriteItem rejects a
	// request that repeats a key, so each user is queried once.
	seen := make(map[models.UserID]struct{}, len(users))

	var keys []itemKey
	for _, u := range users {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}

		userKeys, err := p.queryKeys(ctx, u.ID)
		if err != nil {
			return apperr.Application(err)
		}
		keys = append(keys, userKeys...)
	}

	zerolog.Ctx(ctx).Info().Int("users", len(seen)).Int("items", len(keys)).Msg("Deleting user items")

	_, err := batch.Dispatch(ctx, keys, MaxWriteItems, p.deleteKeys)
	if err != nil {
		return apperr.Application(err)
	}

	return nil
}

func (p *NoSQLPurger) queryKeys(ctx context.Context, userID models.UserID) ([]itemKey, error) {
	keyEx := expression.Key(PartitionKeyAttribute).Equal(expression.Value(userID.String()))
	proj := expression.NamesList(expression.Name(PartitionKeyAttribute), expression.Name(SortKeyAttribute))

	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).WithProjection(proj).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(p.client, &dynamodb.QueryInput{
		TableName:                 aws.String(p.cfg.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var keys []itemKey
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query items for user %s: %w", userID, err)
		}

		var pageKeys []itemKey
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageKeys); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item keys: %w", err)
		}
		keys = append(keys, pageKeys...)
	}

	return keys, nil
}

func (p *NoSQLPurger) deleteKeys(ctx context.Context, keys []itemKey) (int, error) {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		key, err := attributevalue.MarshalMap(k)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal item key: %w", err)
		}
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
	}

	metrics := telemetry.GetMetrics()
	pending := map[string][]types.WriteRequest{p.cfg.TableName: requests}
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialInterval
	bo.MaxInterval = p.cfg.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			metrics.NoSQLBatchRetriesTotal.Add(ctx, 1)
		}

		out, err := p.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			if isThrottle(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}

		if len(out.UnprocessedItems[p.cfg.TableName]) > 0 {
			pending = out.UnprocessedItems
			return struct{}{}, errUnprocessedItems
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(p.cfg.MaxAttempts))

	if err != nil {
		left := len(pending[p.cfg.TableName])
		metrics.NoSQLItemsDeletedTotal.Add(ctx, int64(len(requests)-left))
		return 0, fmt.Errorf("batch delete after %d attempts: %w", attempt, err)
	}

	metrics.NoSQLItemsDeletedTotal.Add(ctx, int64(len(requests)))
	return len(requests), nil
}

// ProcessBatch implements queue.BatchHandler.
func (p *NoSQLPurger) ProcessBatch(ctx context.Context, msgs []queue.Message) []string {
	return processBatch(ctx, "nosql", msgs, p.DeleteUsers)
}
