package purge

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/batch"
	"github.com/wolfeidau/orgpurge/internal/logger"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/store"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// TreeResolver resolves the subtree of a lead organization and counts what it holds.
type TreeResolver struct {
	store store.OrganizationStore
}

// NewTreeResolver creates a resolver reading from st.
func NewTreeResolver(st store.OrganizationStore) *TreeResolver {
	return &TreeResolver{store: st}
}

type orgContents struct {
	users     []models.User
	documents int
}

// Resolve returns the lead organization, its descendants, the ids of every organization
// to purge (lead first) and totals across the whole subtree.
func (r *TreeResolver) Resolve(ctx context.Context, in models.PrepareInput) (*models.PrepareOutput, error) {
	if in.LeadAgencyID == "" {
		return nil, apperr.Validation("leadAgencyId is required")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "purge.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("lead_agency_id", in.LeadAgencyID.String()))

	log := zerolog.Ctx(ctx).With().Str("lead_agency_id", in.LeadAgencyID.String()).Logger()
	ctx = log.WithContext(ctx)

	out, err := r.resolve(ctx, in.LeadAgencyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("Failed to resolve organization tree")
		return nil, err
	}

	log.Info().
		Int("sub_agencies", out.Totals.SubAgencies).
		Int("participants", out.Totals.Users.Participants).
		Int("professionals", out.Totals.Users.Professionals).
		Int("documents", out.Totals.ParticipantData.Documents).
		Msg("Resolved organization tree")

	return out, nil
}

func (r *TreeResolver) resolve(ctx context.Context, leadID models.OrganizationID) (*models.PrepareOutput, error) {
	log := zerolog.Ctx(ctx)

	lead, err := r.store.GetOrganization(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, apperr.Applicationf("lead organization %s not found", leadID)
		}
		return nil, apperr.Database(err)
	}

	log.Debug().Str("organization_name", lead.Name).Int("left", lead.Left).Int("right", lead.Right).Msg("Found lead organization")

	found, err := r.store.GetSubOrganizationsByInterval(ctx, lead.Left, lead.Right)
	if err != nil {
		return nil, apperr.Database(err)
	}

	subs := make([]models.Organization, 0, len(found))
	for _, org := range found {
		if org.ID == lead.ID || !lead.Contains(org) {
			log.Warn().
				Str("org_id", org.ID.String()).
				Int("left", org.Left).
				Int("right", org.Right).
				Msg("Dropping organization outside the lead interval")
			continue
		}
		subs = append(subs, org)
	}

	refs := make([]models.OrgRef, 0, len(subs)+1)
	refs = append(refs, models.OrgRef{OrgID: lead.ID})
	for _, org := range subs {
		refs = append(refs, models.OrgRef{OrgID: org.ID})
	}

	contents, err := batch.Dispatch(ctx, refs, 1, func(ctx context.Context, chunk []models.OrgRef) (orgContents, error) {
		return r.contents(ctx, chunk[0].OrgID)
	})
	if err != nil {
		return nil, err
	}

	totals := models.Totals{SubAgencies: len(subs)}
	for _, c := range contents {
		totals.Users.Participants += models.CountUsers(c.users, models.UserTypeParticipant)
		totals.Users.Professionals += models.CountUsers(c.users, models.UserTypeProfessional)
		totals.ParticipantData.Documents += c.documents
	}

	log.Debug().
		Interface("sample", logger.Sample(subs)).
		Msg("sub agencies; sample of 10")

	return &models.PrepareOutput{
		LeadAgency:  *lead,
		SubAgencies: subs,
		Totals:      totals,
		AllOrgIDs:   refs,
	}, nil
}

func (r *TreeResolver) contents(ctx context.Context, orgID models.OrganizationID) (orgContents, error) {
	users, err := r.store.GetUsersByOrgID(ctx, orgID)
	if err != nil {
		return orgContents{}, apperr.Database(err)
	}

	docs, err := r.store.GetDocumentsByOrgID(ctx, orgID)
	if err != nil {
		return orgContents{}, apperr.Database(err)
	}

	return orgContents{users: users, documents: len(docs)}, nil
}
