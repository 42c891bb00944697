package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crm_routing_backend/internal/distribution/domain"
	"crm_routing_backend/internal/distribution/service"
	"crm_routing_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadNotFoundMsg = "lead not found"

// Repository provides database operations for lead distribution. It
// implements every port the distribution service depends on.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new distribution repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetLeadRouting loads the minimal lead projection used for routing.
func (r *Repository) GetLeadRouting(ctx context.Context, leadID, tenantID uuid.UUID) (*service.LeadRouting, error) {
	query := `SELECT id, organization_id, source, responsible_agent_id
		FROM leads WHERE id = $1 AND organization_id = $2`

	var lead service.LeadRouting
	err := r.pool.QueryRow(ctx, query, leadID, tenantID).Scan(
		&lead.ID, &lead.TenantID, &lead.Source, &lead.ResponsibleAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(leadNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get lead routing: %w", err)
	}

	return &lead, nil
}

// ResolveActive returns the single active config for (tenant, source type).
// A NULL source_type column marks the catch-all config; callers pass
// domain.SourceAll to target it. Returns (nil, nil) when no config matches.
func (r *Repository) ResolveActive(ctx context.Context, tenantID uuid.UUID, source domain.SourceType) (*domain.DistributionConfig, error) {
	query := `SELECT id, organization_id, source_type, team_id, is_active, distribution_method,
		triggers, eligible_agent_ids, created_at, updated_at
		FROM distribution_configs
		WHERE organization_id = $1 AND is_active = true AND `
	args := []interface{}{tenantID}

	if source == domain.SourceAll {
		query += `source_type IS NULL`
	} else {
		query += `source_type = $2`
		args = append(args, string(source))
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`

	config, err := scanConfig(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve distribution config: %w", err)
	}

	return config, nil
}

// ListTeamMembers returns the user ids belonging to a team, ordered by id.
func (r *Repository) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, id)
	}

	return members, rows.Err()
}

// ListAvailability loads availability rows for active agents along with
// their current open-lead load. Only open-ended pauses (is_paused with no
// pause_until) are filtered here; timed pauses must reach the service layer,
// where AvailableAt checks pause expiry, working hours and capacity against
// a single wall-clock instant. Ordered by agent id ascending so the
// selector's behavior is reproducible.
func (r *Repository) ListAvailability(ctx context.Context, tenantID uuid.UUID, allowList []uuid.UUID) ([]domain.AgentAvailability, error) {
	query := `SELECT a.organization_id, a.user_id, a.is_active, a.is_paused, a.pause_until,
			a.max_capacity, a.priority_weight, a.working_hours,
			COUNT(l.id) FILTER (WHERE fs.stage_type = 'open') AS current_load
		FROM agent_availability a
		LEFT JOIN leads l ON l.responsible_agent_id = a.user_id AND l.organization_id = a.organization_id
		LEFT JOIN funnel_stages fs ON fs.id = l.funnel_stage_id
		WHERE a.organization_id = $1 AND a.is_active = true
			AND (a.is_paused = false OR a.pause_until IS NOT NULL)`
	args := []interface{}{tenantID}

	if allowList != nil {
		query += ` AND a.user_id = ANY($2)`
		args = append(args, allowList)
	}
	query += ` GROUP BY a.organization_id, a.user_id, a.is_active, a.is_paused, a.pause_until,
			a.max_capacity, a.priority_weight, a.working_hours
		ORDER BY a.user_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent availability: %w", err)
	}
	defer rows.Close()

	var result []domain.AgentAvailability
	for rows.Next() {
		var row domain.AgentAvailability
		var workingHours []byte
		if err := rows.Scan(
			&row.TenantID, &row.AgentID, &row.IsActive, &row.IsPaused, &row.PauseUntil,
			&row.MaxCapacity, &row.PriorityWeight, &workingHours, &row.CurrentLoad,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent availability: %w", err)
		}
		if len(workingHours) > 0 {
			if err := json.Unmarshal(workingHours, &row.WorkingHours); err != nil {
				return nil, fmt.Errorf("failed to decode working hours for agent %s: %w", row.AgentID, err)
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// GetUserName resolves an agent's display name.
func (r *Repository) GetUserName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("user not found")
		}
		return "", fmt.Errorf("failed to get user name: %w", err)
	}
	return name, nil
}

func scanConfig(row pgx.Row) (*domain.DistributionConfig, error) {
	var config domain.DistributionConfig
	var sourceType *string
	var method string
	var eligible []uuid.UUID

	err := row.Scan(
		&config.ID, &config.TenantID, &sourceType, &config.TeamID, &config.IsActive,
		&method, &config.Triggers, &eligible, &config.CreatedAt, &config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sourceType == nil {
		config.SourceType = domain.SourceAll
	} else {
		config.SourceType = domain.SourceType(*sourceType)
	}
	config.Method = domain.Method(method)
	config.EligibleAgentIDs = eligible

	return &config, nil
}
