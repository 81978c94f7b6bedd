package commands

import (
	"context"

	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/workflow"
)

type WorkflowCmd struct {
	Run WorkflowRunCmd `cmd:"" help:"Delete a lead organization and its whole subtree"`
}

type WorkflowRunCmd struct {
	LeadAgencyID string `help:"id of the lead organization to delete" required:""`
	PurgePolicy  string `help:"relational purge policy when branches fail" default:"abort" enum:"abort,always,succeeded-only" env:"PURGE_POLICY"`

	AWS       AWSFlags      `embed:"" prefix:"aws-"`
	Postgres  PostgresFlags `embed:"" prefix:"postgres-"`
	Resources ResourceFlags `embed:""`
}

func (c *WorkflowRunCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := globals.setup(ctx, "workflow")
	defer shutdown()

	policy, err := workflow.ParsePurgePolicy(c.PurgePolicy)
	if err != nil {
		return err
	}

	svc, rt, err := buildServices(ctx, &c.AWS, &c.Postgres, &c.Resources, policy)
	if err != nil {
		return err
	}
	defer rt.Close()

	exec, runErr := svc.Workflow.Run(ctx, models.PrepareInput{LeadAgencyID: models.OrganizationID(c.LeadAgencyID)})

	log.Info().
		Str("execution_id", exec.ID.String()).
		Str("state", string(exec.State)).
		Int("failed_branches", len(exec.FailedBranches())).
		Msg("Workflow finished")

	if err := printJSON(exec); err != nil {
		return err
	}
	return runErr
}
