package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Queue attributes shared by every work queue.
const (
	VisibilityTimeoutSeconds = "600"
	RetentionPeriodSeconds   = "259200" // 3 days
)

// Config holds configuration for bootstrapping LocalStack infrastructure
type Config struct {
	// AWS SDK clients
	SQSClient    *sqs.Client
	SNSClient    *sns.Client
	S3Client     *s3.Client
	DynamoClient *dynamodb.Client

	// Stage prefixes every resource name, e.g. "dev"
	Stage string

	// Region is used as the bucket location constraint outside us-east-1
	Region string

	// CleanResources controls whether to delete existing queues, topics and tables before creating.
	// Buckets are never deleted.
	CleanResources bool
}

// Resources holds identifiers for created infrastructure resources
type Resources struct {
	// Queue URLs and ARNs by logical name (QueueDocuments, QueueIdentity, QueueNoSQL)
	QueueURLs map[string]string
	QueueARNs map[string]string

	// TopicARN is the user data topic, subscribed by the identity and nosql queues
	TopicARN         string
	SubscriptionARNs []string

	Buckets struct {
		Docs       string
		Thumbnails string
	}

	UserDataTable string
}
