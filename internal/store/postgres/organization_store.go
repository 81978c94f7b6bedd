package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgpurge/internal/logger"
	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/store"
)

var _ store.OrganizationStore = (*OrganizationStore)(nil)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
	cfg  *StoreConfig
	plan *PurgePlan
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with anything else the process runs, and
// applies the reference schema when cfg.AutoMigrate is set.
func NewOrganizationStore(ctx context.Context, pool *pgxpool.Pool, cfg *StoreConfig) (*OrganizationStore, error) {
	if cfg == nil {
		cfg = &StoreConfig{}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	plan, err := LoadPurgePlan(cfg.PurgePlan)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	return &OrganizationStore{
		pool: pool,
		cfg:  cfg,
		plan: plan,
	}, nil
}

// GetOrganization retrieves an organization by ID.
func (s *OrganizationStore) GetOrganization(ctx context.Context, orgID models.OrganizationID) (*models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.queryTimeout())
	defer cancel()

	query := `
		SELECT organization_id, organization_name, lft, rgt, contract_id
		FROM organization
		WHERE organization_id = $1
	`

	org := &models.Organization{}
	err := s.pool.QueryRow(ctx, query, string(orgID)).Scan(
		&org.ID,
		&org.Name,
		&org.Left,
		&org.Right,
		&org.ContractID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return org, nil
}

// GetSubOrganizationsByInterval returns the organizations nested strictly inside the interval.
func (s *OrganizationStore) GetSubOrganizationsByInterval(ctx context.Context, left, right int) ([]models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.queryTimeout())
	defer cancel()

	query := `
		SELECT organization_id, organization_name, lft, rgt, contract_id
		FROM organization
		WHERE lft > $1 AND rgt <= $2
		ORDER BY lft
	`

	rows, err := s.pool.Query(ctx, query, left, right)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub organizations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Left, &org.Right, &org.ContractID); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", mapPostgresError(err))
	}

	log.Debug().
		Int("left", left).
		Int("right", right).
		Int("count", len(orgs)).
		Interface("sample", logger.Sample(orgs)).
		Msg("sub organizations sample")

	return orgs, nil
}

// GetUsersByOrgID returns professionals followed by participants. No dedupe is applied.
func (s *OrganizationStore) GetUsersByOrgID(ctx context.Context, orgID models.OrganizationID) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.queryTimeout())
	defer cancel()

	query := `
		SELECT u.user_id, u.user_name, u.agency_id, u.onboarded_by, 'professional' AS user_type
		FROM app_user u
		JOIN user_organization uo ON uo.user_id = u.user_id
		WHERE uo.organization_id = $1
		UNION ALL
		SELECT u.user_id, u.user_name, u.agency_id, u.onboarded_by, 'participant' AS user_type
		FROM app_user u
		JOIN participant p ON p.user_id = u.user_id
		JOIN organization o ON o.contract_id = p.contract_id
		WHERE o.organization_id = $1
	`

	rows, err := s.pool.Query(ctx, query, string(orgID))
	if err != nil {
		return nil, fmt.Errorf("failed to query organization users: %w", mapPostgresError(err))
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.AgencyID, &u.OnboardedBy, &u.Type); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", string(orgID)).
		Int("count", len(users)).
		Interface("sample", logger.Sample(users)).
		Msg("organization users sample")

	return users, nil
}

// GetDocumentsByOrgID returns the documents owned by participants of the organization.
func (s *OrganizationStore) GetDocumentsByOrgID(ctx context.Context, orgID models.OrganizationID) ([]models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.queryTimeout())
	defer cancel()

	query := `
		SELECT d.document_id, d.document_name, d.document_url,
		       u.user_id, u.user_name, u.agency_id, u.onboarded_by
		FROM document d
		JOIN user_document ud ON ud.document_id = d.document_id
		JOIN app_user u ON u.user_id = ud.user_id
		JOIN participant p ON p.user_id = u.user_id
		JOIN organization o ON o.contract_id = p.contract_id
		WHERE o.organization_id = $1
		ORDER BY u.user_id, d.document_id
	`

	rows, err := s.pool.Query(ctx, query, string(orgID))
	if err != nil {
		return nil, fmt.Errorf("failed to query organization documents: %w", mapPostgresError(err))
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.URL,
			&d.User.ID,
			&d.User.Username,
			&d.User.AgencyID,
			&d.User.OnboardedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.User.Type = models.UserTypeParticipant
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", string(orgID)).
		Int("count", len(docs)).
		Interface("sample", logger.Sample(docs)).
		Msg("organization documents sample")

	return docs, nil
}
