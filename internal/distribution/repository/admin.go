package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm_routing_backend/internal/distribution/domain"
	"crm_routing_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const configNotFoundMsg = "distribution config not found"

// CreateConfig inserts a new distribution config.
func (r *Repository) CreateConfig(ctx context.Context, config *domain.DistributionConfig) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO distribution_configs (
			id, organization_id, source_type, team_id, is_active,
			distribution_method, triggers, eligible_agent_ids, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		config.ID, config.TenantID, sourceColumn(config.SourceType), config.TeamID,
		config.IsActive, string(config.Method), config.Triggers, config.EligibleAgentIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to create distribution config: %w", err)
	}
	return nil
}

// UpdateConfig replaces a config's mutable fields.
func (r *Repository) UpdateConfig(ctx context.Context, config *domain.DistributionConfig) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE distribution_configs SET source_type = $1, team_id = $2, is_active = $3,
			distribution_method = $4, triggers = $5, eligible_agent_ids = $6, updated_at = now()
		WHERE id = $7 AND organization_id = $8`,
		sourceColumn(config.SourceType), config.TeamID, config.IsActive,
		string(config.Method), config.Triggers, config.EligibleAgentIDs,
		config.ID, config.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update distribution config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(configNotFoundMsg)
	}
	return nil
}

// DeleteConfig removes a config.
func (r *Repository) DeleteConfig(ctx context.Context, configID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM distribution_configs WHERE id = $1 AND organization_id = $2`,
		configID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete distribution config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(configNotFoundMsg)
	}
	return nil
}

// ListConfigs returns all of a tenant's configs, catch-all last.
func (r *Repository) ListConfigs(ctx context.Context, tenantID uuid.UUID) ([]domain.DistributionConfig, error) {
	query := `SELECT id, organization_id, source_type, team_id, is_active, distribution_method,
		triggers, eligible_agent_ids, created_at, updated_at
		FROM distribution_configs
		WHERE organization_id = $1
		ORDER BY source_type NULLS LAST, created_at`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list distribution configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.DistributionConfig
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution config: %w", err)
		}
		configs = append(configs, *config)
	}

	return configs, rows.Err()
}

// UpsertAvailability creates or replaces an agent's availability settings.
func (r *Repository) UpsertAvailability(ctx context.Context, row domain.AgentAvailability) error {
	var workingHours []byte
	if row.WorkingHours != nil {
		encoded, err := json.Marshal(row.WorkingHours)
		if err != nil {
			return fmt.Errorf("failed to encode working hours: %w", err)
		}
		workingHours = encoded
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO agent_availability (
			organization_id, user_id, is_active, is_paused, pause_until,
			max_capacity, priority_weight, working_hours, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (organization_id, user_id) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			is_paused = EXCLUDED.is_paused,
			pause_until = EXCLUDED.pause_until,
			max_capacity = EXCLUDED.max_capacity,
			priority_weight = EXCLUDED.priority_weight,
			working_hours = EXCLUDED.working_hours,
			updated_at = now()`,
		row.TenantID, row.AgentID, row.IsActive, row.IsPaused, row.PauseUntil,
		row.MaxCapacity, row.PriorityWeight, workingHours,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert agent availability: %w", err)
	}
	return nil
}

// SetPause pauses or resumes an agent. pauseUntil is nil for an open-ended
// pause or a resume.
func (r *Repository) SetPause(ctx context.Context, tenantID, agentID uuid.UUID, paused bool, pauseUntil *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE agent_availability SET is_paused = $1, pause_until = $2, updated_at = now()
		WHERE organization_id = $3 AND user_id = $4`,
		paused, pauseUntil, tenantID, agentID,
	)
	if err != nil {
		return fmt.Errorf("failed to set agent pause: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("agent availability not found")
	}
	return nil
}

// GetAvailability loads one agent's availability settings with current load.
func (r *Repository) GetAvailability(ctx context.Context, tenantID, agentID uuid.UUID) (*domain.AgentAvailability, error) {
	rows, err := r.ListAvailabilityAll(ctx, tenantID, []uuid.UUID{agentID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("agent availability not found")
	}
	return &rows[0], nil
}

// ListAvailabilityAll is the admin variant of ListAvailability: it includes
// inactive and paused agents so operators can see the full roster.
func (r *Repository) ListAvailabilityAll(ctx context.Context, tenantID uuid.UUID, allowList []uuid.UUID) ([]domain.AgentAvailability, error) {
	query := `SELECT a.organization_id, a.user_id, a.is_active, a.is_paused, a.pause_until,
			a.max_capacity, a.priority_weight, a.working_hours,
			COUNT(l.id) FILTER (WHERE fs.stage_type = 'open') AS current_load
		FROM agent_availability a
		LEFT JOIN leads l ON l.responsible_agent_id = a.user_id AND l.organization_id = a.organization_id
		LEFT JOIN funnel_stages fs ON fs.id = l.funnel_stage_id
		WHERE a.organization_id = $1`
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

// ListTenantsWithInactiveAssignees returns tenants that have open leads
// assigned to agents who are no longer active. Used by the redistribution sweep.
func (r *Repository) ListTenantsWithInactiveAssignees(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT l.organization_id
		FROM leads l
		JOIN funnel_stages fs ON fs.id = l.funnel_stage_id
		JOIN agent_availability a ON a.user_id = l.responsible_agent_id AND a.organization_id = l.organization_id
		WHERE fs.stage_type = 'open' AND a.is_active = false`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with inactive assignees: %w", err)
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}

	return tenants, rows.Err()
}

// ListLeadsWithInactiveAssignee returns a tenant's open leads whose
// responsible agent has been deactivated, oldest first.
func (r *Repository) ListLeadsWithInactiveAssignee(ctx context.Context, tenantID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT l.id
		FROM leads l
		JOIN funnel_stages fs ON fs.id = l.funnel_stage_id
		JOIN agent_availability a ON a.user_id = l.responsible_agent_id AND a.organization_id = l.organization_id
		WHERE l.organization_id = $1 AND fs.stage_type = 'open' AND a.is_active = false
		ORDER BY l.created_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads with inactive assignee: %w", err)
	}
	defer rows.Close()

	var leads []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan lead id: %w", err)
		}
		leads = append(leads, id)
	}

	return leads, rows.Err()
}

// GetConfig loads one config by id.
func (r *Repository) GetConfig(ctx context.Context, configID, tenantID uuid.UUID) (*domain.DistributionConfig, error) {
	query := `SELECT id, organization_id, source_type, team_id, is_active, distribution_method,
		triggers, eligible_agent_ids, created_at, updated_at
		FROM distribution_configs WHERE id = $1 AND organization_id = $2`

	config, err := scanConfig(r.pool.QueryRow(ctx, query, configID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(configNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get distribution config: %w", err)
	}

	return config, nil
}

func sourceColumn(source domain.SourceType) *string {
	if source == domain.SourceAll || source == "" {
		return nil
	}
	value := string(source)
	return &value
}
