package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfeidau/orgpurge/internal/awsclient"
	"github.com/wolfeidau/orgpurge/internal/bootstrap"
	"github.com/wolfeidau/orgpurge/internal/config"
	postgresstore "github.com/wolfeidau/orgpurge/internal/store/postgres"
)

type AWSFlags struct {
	Region   string `help:"AWS region" default:"ap-southeast-2" env:"AWS_REGION"`
	Endpoint string `help:"AWS endpoint (for LocalStack)" default:"" env:"AWS_ENDPOINT"`
}

// clients builds the AWS clients. An endpoint override implies LocalStack and static test credentials.
func (f *AWSFlags) clients(ctx context.Context) (*awsclient.Clients, error) {
	cfg := awsclient.Config{
		Region:   f.Region,
		Endpoint: f.Endpoint,
	}
	if f.Endpoint != "" {
		cfg.AccessKeyID = "test"
		cfg.SecretAccessKey = "test"
	}

	awsCfg, err := awsclient.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return awsclient.NewClients(awsCfg), nil
}

type PostgresFlags struct {
	// Connection Configuration
	ConnString           string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	CredentialsParameter string `help:"SSM parameter holding the connection string or JSON credentials" env:"DB_CREDENTIALS_PARAMETER"`
	CredentialsFile      string `help:"file holding the connection string or JSON credentials" env:"DB_CREDENTIALS_FILE"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Store Configuration
	QueryTimeout int32  `help:"read query timeout in seconds" default:"30"`
	PurgeTimeout int32  `help:"relational purge transaction timeout in seconds" default:"600"`
	PurgePlan    string `help:"YAML purge plan overriding the embedded one" type:"path" env:"ORGPURGE_PURGE_PLAN"`
}

func (f *PostgresFlags) Validate() error {
	if f.ConnString == "" && f.CredentialsParameter == "" && f.CredentialsFile == "" {
		return errors.New("PostgreSQL connection is required (--postgres-conn-string, --postgres-credentials-parameter or --postgres-credentials-file)")
	}
	if f.MinConns > f.MaxConns {
		return fmt.Errorf("min connections %d exceeds max connections %d", f.MinConns, f.MaxConns)
	}
	return nil
}

func (f *PostgresFlags) source() config.ConnStringSource {
	return config.ConnStringSource{
		ConnString:   f.ConnString,
		SSMParameter: f.CredentialsParameter,
		File:         f.CredentialsFile,
	}
}

// openPool resolves the connection string and opens a pool. ssmClient is only
// needed when the credentials come from SSM.
func (f *PostgresFlags) openPool(ctx context.Context, ssmClient config.SSMAPI) (*pgxpool.Pool, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	connString, err := config.ResolveConnString(ctx, f.source(), ssmClient)
	if err != nil {
		return nil, err
	}

	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString:      connString,
		MaxConns:        f.MaxConns,
		MinConns:        f.MinConns,
		MaxConnLifetime: f.MaxConnLifetime,
		MaxConnIdleTime: f.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store pool: %w", err)
	}
	return pool, nil
}

// storeConfig builds the store configuration, loading the purge plan override if set.
func (f *PostgresFlags) storeConfig(autoMigrate bool) (*postgresstore.StoreConfig, error) {
	cfg := &postgresstore.StoreConfig{
		AutoMigrate:         autoMigrate,
		QueryTimeoutSeconds: f.QueryTimeout,
		PurgeTimeoutSeconds: f.PurgeTimeout,
	}

	if f.PurgePlan != "" {
		plan, err := os.ReadFile(f.PurgePlan)
		if err != nil {
			return nil, fmt.Errorf("failed to read purge plan: %w", err)
		}
		cfg.PurgePlan = plan
	}

	return cfg, nil
}

// ResourceFlags locate the queue, topic and buckets of a stage. Empty names
// are derived from the stage.
type ResourceFlags struct {
	Stage            string `help:"deployment stage" default:"dev" enum:"dev,prod,train,demo" env:"STAGE"`
	QueueURL         string `help:"document purge queue URL" default:"" env:"QUEUE_URL"`
	TopicARN         string `help:"user data topic ARN" default:"" env:"TOPIC_ARN"`
	DocsBucket       string `help:"documents bucket name" default:"" env:"DOCS_BUCKET_NAME"`
	ThumbnailsBucket string `help:"document thumbnails bucket name" default:"" env:"DOCS_TB_BUCKET_NAME"`
}

func (f *ResourceFlags) applyDefaults() {
	if f.DocsBucket == "" {
		f.DocsBucket = bootstrap.BucketName(f.Stage, bootstrap.BucketDocs)
	}
	if f.ThumbnailsBucket == "" {
		f.ThumbnailsBucket = bootstrap.BucketName(f.Stage, bootstrap.BucketThumbnails)
	}
}

// queueURL returns the configured URL or looks up the stage's queue by name.
func (f *ResourceFlags) queueURL(ctx context.Context, client *sqs.Client, name string) (string, error) {
	if f.QueueURL != "" {
		return f.QueueURL, nil
	}

	queueName := bootstrap.ResourceName(f.Stage, name)
	output, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", queueName, err)
	}
	return aws.ToString(output.QueueUrl), nil
}
