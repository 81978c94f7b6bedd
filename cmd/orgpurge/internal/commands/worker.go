package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgpurge/internal/awsclient"
	"github.com/wolfeidau/orgpurge/internal/blob"
	"github.com/wolfeidau/orgpurge/internal/bootstrap"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/queue"
	"github.com/wolfeidau/orgpurge/internal/subscriber"
)

type WorkerCmd struct {
	Documents DocumentsWorkerCmd `cmd:"" help:"Delete document files named on the document purge queue"`
	Identity  IdentityWorkerCmd  `cmd:"" help:"Delete user pool users named on the identity subscription queue"`
	NoSQL     NoSQLWorkerCmd     `cmd:"" name:"nosql" help:"Delete per user items named on the nosql subscription queue"`
}

// ConsumerFlags configure the receive loop shared by every worker.
type ConsumerFlags struct {
	QueueURL          string        `help:"queue URL to consume, derived from the stage when empty" default:"" env:"QUEUE_URL"`
	Stage             string        `help:"deployment stage" default:"dev" enum:"dev,prod,train,demo" env:"STAGE"`
	BatchSize         int32         `help:"messages per receive" default:"5"`
	VisibilityTimeout int32         `help:"visibility timeout in seconds" default:"600"`
	MaxBackoff        time.Duration `help:"maximum wait between failed receives" default:"1m"`
}

func (f *ConsumerFlags) run(ctx context.Context, clients *awsclient.Clients, name, queueName string, handler queue.BatchHandler) error {
	res := ResourceFlags{Stage: f.Stage, QueueURL: f.QueueURL}
	queueURL, err := res.queueURL(ctx, clients.SQS, queueName)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("worker", name).Str("queue_url", queueURL).Msg("Worker starting")

	consumer := queue.NewConsumer(queue.NewSQSQueue(clients.SQS), handler, queue.ConsumerConfig{
		QueueURL: queueURL,
		Name:     name,
		Receive: queue.ReceiveOptions{
			MaxMessages:       f.BatchSize,
			VisibilityTimeout: f.VisibilityTimeout,
		},
		MaxBackoff: f.MaxBackoff,
	})

	return consumer.Run(ctx)
}

type DocumentsWorkerCmd struct {
	DocsBucket       string `help:"documents bucket name" default:"" env:"DOCS_BUCKET_NAME"`
	ThumbnailsBucket string `help:"document thumbnails bucket name" default:"" env:"DOCS_TB_BUCKET_NAME"`

	Consumer ConsumerFlags `embed:""`
	AWS      AWSFlags      `embed:"" prefix:"aws-"`
}

func (c *DocumentsWorkerCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, _, shutdown := globals.setup(ctx, "worker-documents")
	defer shutdown()

	clients, err := c.AWS.clients(ctx)
	if err != nil {
		return err
	}

	res := ResourceFlags{Stage: c.Consumer.Stage, DocsBucket: c.DocsBucket, ThumbnailsBucket: c.ThumbnailsBucket}
	res.applyDefaults()

	documents := purge.NewDocumentCoordinator(nil, nil, blob.NewS3Deleter(clients.S3), purge.DocumentConfig{
		Buckets: []string{res.DocsBucket, res.ThumbnailsBucket},
	})

	return c.Consumer.run(ctx, clients, "documents", bootstrap.QueueDocuments, documents.ProcessBatch)
}

type IdentityWorkerCmd struct {
	UserPoolID string `help:"user pool to delete users from" required:"" env:"USER_POOL_ID"`

	Consumer ConsumerFlags `embed:""`
	AWS      AWSFlags      `embed:"" prefix:"aws-"`
}

func (c *IdentityWorkerCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, _, shutdown := globals.setup(ctx, "worker-identity")
	defer shutdown()

	clients, err := c.AWS.clients(ctx)
	if err != nil {
		return err
	}

	purger := subscriber.NewIdentityPurger(clients.Cognito, c.UserPoolID)
	return c.Consumer.run(ctx, clients, "identity", bootstrap.QueueIdentity, purger.ProcessBatch)
}

type NoSQLWorkerCmd struct {
	Table       string `help:"user data table, derived from the stage when empty" default:"" env:"USER_DATA_TABLE"`
	MaxAttempts uint   `help:"batch write attempts while items remain unprocessed" default:"8"`

	Consumer ConsumerFlags `embed:""`
	AWS      AWSFlags      `embed:"" prefix:"aws-"`
}

func (c *NoSQLWorkerCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, _, shutdown := globals.setup(ctx, "worker-nosql")
	defer shutdown()

	clients, err := c.AWS.clients(ctx)
	if err != nil {
		return err
	}

	table := c.Table
	if table == "" {
		table = bootstrap.ResourceName(c.Consumer.Stage, bootstrap.TableUserData)
	}

	purger := subscriber.NewNoSQLPurger(clients.DynamoDB, subscriber.NoSQLConfig{
		TableName:   table,
		MaxAttempts: c.MaxAttempts,
	})
	return c.Consumer.run(ctx, clients, "nosql", bootstrap.QueueNoSQL, purger.ProcessBatch)
}
