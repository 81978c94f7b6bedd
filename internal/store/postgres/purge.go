package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/store"
)

//go:embed purge_plan.yaml
var defaultPurgePlan []byte

// PurgePlan is the ordered list of statements run by PurgeOrganizations.
type PurgePlan struct {
	Steps []PurgeStep `yaml:"steps"`
}

// PurgeStep is one statement of a purge plan.
type PurgeStep struct {
	Name string `yaml:"name"`
	SQL  string `yaml:"sql"`
	// Unbound statements take no parameters.
	Unbound bool `yaml:"unbound"`
}

// LoadPurgePlan parses a YAML purge plan. An empty document loads the embedded plan.
func LoadPurgePlan(data []byte) (*PurgePlan, error) {
	if len(data) == 0 {
		data = defaultPurgePlan
	}

	var plan PurgePlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse purge plan: %w", err)
	}

	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("purge plan has no steps")
	}

	seen := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		if step.Name == "" {
			return nil, fmt.Errorf("purge plan step %d has no name", i)
		}
		if step.SQL == "" {
			return nil, fmt.Errorf("purge plan step %q has no sql", step.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return nil, fmt.Errorf("purge plan step %q is duplicated", step.Name)
		}
		seen[step.Name] = struct{}{}
	}

	return &plan, nil
}

// PurgeOrganizations runs the purge plan for orgIDs inside a single transaction.
// Either every step commits or none does.
func (s *OrganizationStore) PurgeOrganizations(ctx context.Context, orgIDs []models.OrganizationID) (*store.PurgeResult, error) {
	result := &store.PurgeResult{Steps: []store.PurgeStepResult{}}
	if len(orgIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.purgeTimeout())
	defer cancel()

	ids := make([]string, len(orgIDs))
	for i, id := range orgIDs {
		ids[i] = string(id)
	}

	started := time.Now()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, step := range s.plan.Steps {
			var args []any
			if !step.Unbound {
				args = append(args, ids)
			}

			tag, err := tx.Exec(ctx, step.SQL, args...)
			if err != nil {
				return fmt.Errorf("purge step %s failed: %w", step.Name, mapPostgresError(err))
			}

			result.Steps = append(result.Steps, store.PurgeStepResult{
				Name:         step.Name,
				RowsAffected: tag.RowsAffected(),
			})

			log.Debug().
				Str("step", step.Name).
				Int64("rows", tag.RowsAffected()).
				Msg("purge step completed")
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("organizations", len(orgIDs)).Msg("Relational purge rolled back")
		return nil, err
	}

	log.Info().
		Int("organizations", len(orgIDs)).
		Int64("rows", result.TotalRows()).
		Dur("duration", time.Since(started)).
		Msg("Relational purge committed")

	return result, nil
}
