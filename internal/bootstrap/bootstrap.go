package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Bootstrap creates all required infrastructure: work queues, the user data topic and
// its subscriptions, the document buckets and the user data table.
// If CleanResources is true, deletes existing resources first to ensure clean state
// If CleanResources is false, creates resources only if they don't exist (preserves data)
func Bootstrap(ctx context.Context, cfg Config) (*Resources, error) {
	if cfg.SQSClient == nil || cfg.SNSClient == nil {
		return nil, fmt.Errorf("SQSClient and SNSClient are required")
	}
	if cfg.S3Client == nil {
		return nil, fmt.Errorf("S3Client is required")
	}
	if cfg.DynamoClient == nil {
		return nil, fmt.Errorf("DynamoClient is required")
	}
	if cfg.Stage == "" {
		cfg.Stage = "dev"
	}

	resources := &Resources{}

	queueURLs, queueARNs, err := CreateQueues(ctx, cfg.SQSClient, cfg.Stage, cfg.CleanResources)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS queues: %w", err)
	}
	resources.QueueURLs = queueURLs
	resources.QueueARNs = queueARNs

	topicARN, err := CreateTopic(ctx, cfg.SNSClient, cfg.Stage, cfg.CleanResources)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS topic: %w", err)
	}
	resources.TopicARN = topicARN

	for _, name := range []string{QueueIdentity, QueueNoSQL} {
		subARN, err := SubscribeQueue(ctx, cfg.SNSClient, cfg.SQSClient, topicARN, queueURLs[name], queueARNs[name])
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe %s: %w", name, err)
		}
		resources.SubscriptionARNs = append(resources.SubscriptionARNs, subARN)
	}

	resources.Buckets.Docs = BucketName(cfg.Stage, BucketDocs)
	resources.Buckets.Thumbnails = BucketName(cfg.Stage, BucketThumbnails)
	for _, bucket := range []string{resources.Buckets.Docs, resources.Buckets.Thumbnails} {
		if err := CreateBucket(ctx, cfg.S3Client, bucket, cfg.Region); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	table, err := CreateUserDataTable(ctx, cfg.DynamoClient, cfg.Stage, cfg.CleanResources)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB table: %w", err)
	}
	resources.UserDataTable = table

	log.Info().
		Str("stage", cfg.Stage).
		Str("documents_queue", queueURLs[QueueDocuments]).
		Str("topic_arn", topicARN).
		Str("table", table).
		Msg("Bootstrapped infrastructure")

	return resources, nil
}

// Cleanup deletes the queues, topic and table created by Bootstrap. Buckets are kept.
func Cleanup(ctx context.Context, cfg Config, res *Resources) error {
	if err := DeleteQueues(ctx, cfg.SQSClient, res.QueueURLs); err != nil {
		return fmt.Errorf("failed to delete queues: %w", err)
	}

	if err := DeleteTopic(ctx, cfg.SNSClient, res.TopicARN); err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}

	if err := deleteTableIfExists(ctx, cfg.DynamoClient, res.UserDataTable); err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}

	return nil
}
