package commands

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wolfeidau/orgpurge/internal/invoke"
	"github.com/wolfeidau/orgpurge/internal/logger"
	"github.com/wolfeidau/orgpurge/internal/workflow"
)

// InvokeCmd runs one unit the way a serverless invoker would, printing the result as JSON.
type InvokeCmd struct {
	Unit        string        `arg:"" help:"unit to invoke" enum:"prepare-data-for-delete-org,get-docs-to-delete,delete-files,prepare-data-for-delete-user-data,delete-rdbms-data,delete-org"`
	Payload     string        `help:"JSON payload" default:"" xor:"payload"`
	PayloadFile []byte        `help:"file holding the JSON payload" type:"filecontent" xor:"payload"`
	Timeout     time.Duration `help:"invocation timeout, zero uses the unit default" default:"0s"`
	PurgePolicy string        `help:"relational purge policy when branches fail (delete-org only)" default:"abort" enum:"abort,always,succeeded-only" env:"PURGE_POLICY"`

	AWS       AWSFlags      `embed:"" prefix:"aws-"`
	Postgres  PostgresFlags `embed:"" prefix:"postgres-"`
	Resources ResourceFlags `embed:""`
}

func (c *InvokeCmd) payload() (json.RawMessage, error) {
	data := []byte(c.Payload)
	if len(c.PayloadFile) > 0 {
		data = c.PayloadFile
	}
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	return data, nil
}

func (c *InvokeCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := globals.setup(ctx, "invoke")
	defer shutdown()

	payload, err := c.payload()
	if err != nil {
		return err
	}

	policy, err := workflow.ParsePurgePolicy(c.PurgePolicy)
	if err != nil {
		return err
	}

	svc, rt, err := buildServices(ctx, &c.AWS, &c.Postgres, &c.Resources, policy)
	if err != nil {
		return err
	}
	defer rt.Close()

	registry := invoke.NewRegistry(logger.NewUnitRequests(log))
	invoke.RegisterUnits(registry, *svc)

	res, invokeErr := registry.Invoke(ctx, c.Unit, payload, c.Timeout)
	if err := printJSON(res); err != nil {
		return err
	}
	return invokeErr
}
