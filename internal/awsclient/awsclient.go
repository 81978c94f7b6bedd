// Package awsclient loads AWS configuration and builds the service clients used by the commands.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Config selects the region and, for LocalStack, the endpoint and static credentials.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Load loads AWS configuration with optional endpoint and credential overrides.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Endpoint != "" {
		// Use BaseEndpoint for LocalStack support
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}

// Clients are the service clients built from one aws.Config.
type Clients struct {
	SQS      *sqs.Client
	SNS      *sns.Client
	S3       *s3.Client
	DynamoDB *dynamodb.Client
	Cognito  *cognitoidentityprovider.Client
	SSM      *ssm.Client
}

// NewClients builds every client. S3 uses path style addressing when an endpoint
// override is configured, which LocalStack requires.
func NewClients(awsCfg aws.Config) *Clients {
	pathStyle := awsCfg.BaseEndpoint != nil && *awsCfg.BaseEndpoint != ""

	return &Clients{
		SQS: sqs.NewFromConfig(awsCfg),
		SNS: sns.NewFromConfig(awsCfg),
		S3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		}),
		DynamoDB: dynamodb.NewFromConfig(awsCfg),
		Cognito:  cognitoidentityprovider.NewFromConfig(awsCfg),
		SSM:      ssm.NewFromConfig(awsCfg),
	}
}
