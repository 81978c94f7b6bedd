package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/orgpurge/internal/config"
	postgresstore "github.com/wolfeidau/orgpurge/internal/store/postgres"
)

// MigrateCmd applies the embedded reference schema. Production schemas are owned
// by the application that writes them; this is for local stacks and tests.
type MigrateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
	AWS      AWSFlags      `embed:"" prefix:"aws-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := globals.setup(ctx, "migrate")
	defer shutdown()

	var ssmClient config.SSMAPI
	if c.Postgres.CredentialsParameter != "" {
		clients, err := c.AWS.clients(ctx)
		if err != nil {
			return err
		}
		ssmClient = clients.SSM
	}

	pool, err := c.Postgres.openPool(ctx, ssmClient)
	if err != nil {
		return err
	}
	defer pool.Close()

	storeCfg, err := c.Postgres.storeConfig(true)
	if err != nil {
		return err
	}

	if _, err := postgresstore.NewOrganizationStore(ctx, pool, storeCfg); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Info().Msg("Schema is up to date")
	return nil
}
