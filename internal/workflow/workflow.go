// Package workflow runs an organization deletion as a small state machine:
// resolve the subtree, fan out per organization, then purge relational data.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/store"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// Resolver resolves the organizations to delete.
type Resolver interface {
	Resolve(ctx context.Context, in models.PrepareInput) (*models.PrepareOutput, error)
}

// DocumentEnqueuer requests deletion of an organization's documents.
type DocumentEnqueuer interface {
	EnumerateAndEnqueue(ctx context.Context, in models.OrgRef) (*purge.EnqueueResult, error)
}

// UserDataPublisher requests deletion of an organization's per user data.
type UserDataPublisher interface {
	Fanout(ctx context.Context, in models.OrgRef) (*purge.FanoutResult, error)
}

// RelationalPurger deletes organizations and their rows from the relational store.
type RelationalPurger interface {
	PurgeOrganizations(ctx context.Context, orgIDs []models.OrganizationID) (*store.PurgeResult, error)
}

// Deps are the services a Workflow drives.
type Deps struct {
	Resolver  Resolver
	Documents DocumentEnqueuer
	UserData  UserDataPublisher
	Purger    RelationalPurger
}

// Config configures a Workflow.
type Config struct {
	Policy PurgePolicy
	Now    func() time.Time
}

// Workflow runs deletion executions. It holds no per run state and is safe for concurrent use.
type Workflow struct {
	deps Deps
	cfg  Config
}

// New creates a workflow.
func New(deps Deps, cfg Config) *Workflow {
	if cfg.Policy == "" {
		cfg.Policy = PolicyAbort
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Workflow{deps: deps, cfg: cfg}
}

// Run executes one deletion for in.LeadAgencyID and returns its record.
//
// The returned execution is always non nil. When it ends in StateFailed the error
// that caused it is also returned. Done means every deletion was requested; the
// queue and topic consumers are not awaited.
func (w *Workflow) Run(ctx context.Context, in models.PrepareInput) (*Execution, error) {
	exec := &Execution{
		ID:           uuid.Must(uuid.NewV7()),
		LeadAgencyID: in.LeadAgencyID,
		Policy:       w.cfg.Policy,
		State:        StatePrepare,
		StartedAt:    w.cfg.Now(),
	}

	log := zerolog.Ctx(ctx).With().
		Str("execution_id", exec.ID.String()).
		Str("lead_agency_id", in.LeadAgencyID.String()).
		Logger()
	ctx = log.WithContext(ctx)

	ctx, span := telemetry.Tracer().Start(ctx, "workflow.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("execution_id", exec.ID.String()),
		attribute.String("lead_agency_id", in.LeadAgencyID.String()),
		attribute.String("purge_policy", string(w.cfg.Policy)),
	)

	metrics := telemetry.GetMetrics()
	metrics.WorkflowRunsTotal.Add(ctx, 1)

	w.run(ctx, exec)

	exec.FinishedAt = w.cfg.Now()
	duration := exec.FinishedAt.Sub(exec.StartedAt).Seconds()
	metrics.WorkflowDuration.Record(ctx, duration, metric.WithAttributes(attribute.String("state", string(exec.State))))

	if exec.err != nil {
		metrics.WorkflowFailuresTotal.Add(ctx, 1)
		span.RecordError(exec.err)
		span.SetStatus(codes.Error, exec.err.Error())
		log.Error().
			Err(exec.err).
			Str("kind", string(apperr.KindOf(exec.err))).
			Int("failed_branches", len(exec.FailedBranches())).
			Msg("Deletion workflow failed")
		return exec, exec.err
	}

	log.Info().
		Int("organizations", len(exec.Branches)).
		Int64("rows_deleted", exec.Purge.TotalRows()).
		Float64("duration_seconds", duration).
		Msg("Deletion workflow done")

	return exec, nil
}

func (w *Workflow) run(ctx context.Context, exec *Execution) {
	prepared, err := w.prepare(ctx, exec)
	if err != nil {
		w.fail(ctx, exec, err)
		return
	}
	exec.Prepare = prepared

	w.enter(ctx, exec, StatePerOrgFanout)
	exec.Branches = w.fanout(ctx, prepared.AllOrgIDs)

	purgeIDs, branchErr := w.selectPurge(ctx, exec)
	if purgeIDs == nil {
		w.fail(ctx, exec, branchErr)
		return
	}

	w.enter(ctx, exec, StatePurgeRelationalData)

	res, err := w.purgeRelational(ctx, purgeIDs)
	if err != nil {
		// The execution reports the first error; a branch failure precedes the purge.
		if branchErr != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Relational purge failed after branch failures")
			w.fail(ctx, exec, branchErr)
			return
		}
		w.fail(ctx, exec, err)
		return
	}
	exec.Purged = purgeIDs
	exec.Purge = res

	if branchErr != nil {
		w.fail(ctx, exec, branchErr)
		return
	}

	w.enter(ctx, exec, StateDone)
}

func (w *Workflow) prepare(ctx context.Context, exec *Execution) (*models.PrepareOutput, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "workflow.Prepare")
	defer span.End()

	out, err := w.deps.Resolver.Resolve(ctx, models.PrepareInput{LeadAgencyID: exec.LeadAgencyID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("organizations", len(out.AllOrgIDs)))
	return out, nil
}

// fanout runs both branches for every organization concurrently and waits for all
// of them. A failed branch never cancels another.
func (w *Workflow) fanout(ctx context.Context, refs []models.OrgRef) []BranchResult {
	ctx, span := telemetry.Tracer().Start(ctx, "workflow.PerOrgFanout")
	defer span.End()
	span.SetAttributes(attribute.Int("organizations", len(refs)))

	results := make([]BranchResult, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		results[i].OrgID = ref.OrgID
		res := &results[i]

		wg.Go(func() {
			docs, err := w.deps.Documents.EnumerateAndEnqueue(ctx, ref)
			res.Documents, res.documentsErr = docs, err
		})
		wg.Go(func() {
			users, err := w.deps.UserData.Fanout(ctx, ref)
			res.UserData, res.userDataErr = users, err
		})
	}
	wg.Wait()

	metrics := telemetry.GetMetrics()
	for i := range results {
		res := &results[i]
		if res.documentsErr != nil {
			p := apperr.AsPayload(res.documentsErr)
			res.DocumentsErr = &p
			metrics.BranchFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", "documents")))
		}
		if res.userDataErr != nil {
			p := apperr.AsPayload(res.userDataErr)
			res.UserDataErr = &p
			metrics.BranchFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("branch", "user_data")))
		}
		if !res.Succeeded() {
			zerolog.Ctx(ctx).Warn().
				Err(res.Err()).
				Str("processing_org_id", res.OrgID.String()).
				Msg("Organization branch failed")
		}
	}

	return results
}

// selectPurge applies the purge policy to the branch results. It returns the organizations
// to purge and the first branch error, if any. A nil id slice means skip the purge.
func (w *Workflow) selectPurge(ctx context.Context, exec *Execution) ([]models.OrganizationID, error) {
	var firstErr error
	succeeded := make([]models.OrganizationID, 0, len(exec.Branches))
	for i := range exec.Branches {
		b := &exec.Branches[i]
		if b.Succeeded() {
			succeeded = append(succeeded, b.OrgID)
			continue
		}
		if firstErr == nil {
			firstErr = b.Err()
		}
	}

	if firstErr == nil {
		return exec.Prepare.OrganizationIDs(), nil
	}

	log := zerolog.Ctx(ctx)

	switch w.cfg.Policy {
	case PolicyAlways:
		log.Warn().Msg("Branches failed; purging every organization")
		return exec.Prepare.OrganizationIDs(), firstErr
	case PolicySucceededOnly:
		if len(succeeded) == 0 {
			log.Warn().Msg("Branches failed for every organization; skipping relational purge")
			return nil, firstErr
		}
		log.Warn().Int("organizations", len(succeeded)).Msg("Branches failed; purging organizations that succeeded")
		return succeeded, firstErr
	default:
		log.Warn().Msg("Branches failed; skipping relational purge")
		return nil, firstErr
	}
}

func (w *Workflow) purgeRelational(ctx context.Context, ids []models.OrganizationID) (*store.PurgeResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "workflow.PurgeRelationalData")
	defer span.End()
	span.SetAttributes(attribute.Int("organizations", len(ids)))

	res, err := w.deps.Purger.PurgeOrganizations(ctx, ids)
	if err != nil {
		err = apperr.Database(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	telemetry.GetMetrics().RelationalRowsDeletedTotal.Add(ctx, res.TotalRows())
	return res, nil
}

func (w *Workflow) enter(ctx context.Context, exec *Execution, to State) {
	from := exec.State
	if err := exec.transition(to, w.cfg.Now()); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Invalid state transition")
		return
	}
	zerolog.Ctx(ctx).Info().Str("from", string(from)).Str("to", string(to)).Msg("State transition")
}

func (w *Workflow) fail(ctx context.Context, exec *Execution, err error) {
	exec.err = err
	p := apperr.AsPayload(err)
	exec.Error = &p
	w.enter(ctx, exec, StateFailed)
}
