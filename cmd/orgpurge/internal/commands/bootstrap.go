package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/orgpurge/internal/bootstrap"
)

// BootstrapCmd creates the messaging, storage and table resources of a stage.
type BootstrapCmd struct {
	Stage string `help:"deployment stage" default:"dev" enum:"dev,prod,train,demo" env:"STAGE"`
	Clean bool   `help:"delete and recreate queues, topic and table (deletes all pending messages and items)" default:"false"`

	AWS AWSFlags `embed:"" prefix:"aws-"`
}

func (c *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := globals.setup(ctx, "bootstrap")
	defer shutdown()

	if c.AWS.Endpoint == "" {
		log.Warn().Msg("No endpoint override, creating resources in the real AWS account")
	}

	clients, err := c.AWS.clients(ctx)
	if err != nil {
		return err
	}

	res, err := bootstrap.Bootstrap(ctx, bootstrap.Config{
		SQSClient:      clients.SQS,
		SNSClient:      clients.SNS,
		S3Client:       clients.S3,
		DynamoClient:   clients.DynamoDB,
		Stage:          c.Stage,
		Region:         c.AWS.Region,
		CleanResources: c.Clean,
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap %s resources: %w", c.Stage, err)
	}

	log.Info().
		Str("queue_url", res.QueueURLs[bootstrap.QueueDocuments]).
		Str("topic_arn", res.TopicARN).
		Str("docs_bucket", res.Buckets.Docs).
		Str("thumbnails_bucket", res.Buckets.Thumbnails).
		Str("user_data_table", res.UserDataTable).
		Msg("Infrastructure ready")

	return printJSON(res)
}
