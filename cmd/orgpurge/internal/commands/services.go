package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgpurge/internal/awsclient"
	"github.com/wolfeidau/orgpurge/internal/blob"
	"github.com/wolfeidau/orgpurge/internal/bootstrap"
	"github.com/wolfeidau/orgpurge/internal/invoke"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/queue"
	postgresstore "github.com/wolfeidau/orgpurge/internal/store/postgres"
	"github.com/wolfeidau/orgpurge/internal/workflow"
)

// backends owns the process wide clients shared by every service.
type backends struct {
	clients *awsclient.Clients
	pool    *pgxpool.Pool
}

func (r *backends) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// buildServices wires the store, queue, topic and blob clients into the deletion services.
func buildServices(ctx context.Context, awsFlags *AWSFlags, pg *PostgresFlags, res *ResourceFlags, policy workflow.PurgePolicy) (*invoke.Services, *backends, error) {
	log := zerolog.Ctx(ctx)

	clients, err := awsFlags.clients(ctx)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pg.openPool(ctx, clients.SSM)
	if err != nil {
		return nil, nil, err
	}
	rt := &backends{clients: clients, pool: pool}

	storeCfg, err := pg.storeConfig(false)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}

	orgStore, err := postgresstore.NewOrganizationStore(ctx, pool, storeCfg)
	if err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("failed to create organization store: %w", err)
	}

	res.applyDefaults()
	queueURL, err := res.queueURL(ctx, clients.SQS, bootstrap.QueueDocuments)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}

	if res.TopicARN == "" {
		log.Warn().Msg("No user data topic configured, user data fanout will fail")
	}

	resolver := purge.NewTreeResolver(orgStore)
	documents := purge.NewDocumentCoordinator(orgStore, queue.NewSQSQueue(clients.SQS), blob.NewS3Deleter(clients.S3), purge.DocumentConfig{
		QueueURL: queueURL,
		Buckets:  []string{res.DocsBucket, res.ThumbnailsBucket},
	})
	userData := purge.NewUserDataCoordinator(orgStore, queue.NewSNSPublisher(clients.SNS), res.TopicARN)

	wf := workflow.New(workflow.Deps{
		Resolver:  resolver,
		Documents: documents,
		UserData:  userData,
		Purger:    orgStore,
	}, workflow.Config{Policy: policy})

	log.Info().
		Str("stage", res.Stage).
		Str("queue_url", queueURL).
		Str("topic_arn", res.TopicARN).
		Str("docs_bucket", res.DocsBucket).
		Str("thumbnails_bucket", res.ThumbnailsBucket).
		Str("purge_policy", string(policy)).
		Msg("Services ready")

	return &invoke.Services{
		Resolver:  resolver,
		Documents: documents,
		UserData:  userData,
		Store:     orgStore,
		Workflow:  wf,
	}, rt, nil
}
