package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
)

// ListTenantsWithTimeBasedRules returns tenants with at least one active
// time_based rule, the fan-out set for the periodic tick.
func (r *Repository) ListTenantsWithTimeBasedRules(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT organization_id FROM automation_rules
		WHERE trigger_type = $1 AND is_active = true
		ORDER BY organization_id`

	rows, err := r.pool.Query(ctx, query, string(domain.TriggerTimeBased))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with time-based rules: %w", err)
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

// ListOpenLeadIDs returns leads in open stages for a tenant, the candidate
// set time-based rules run against. Oldest activity first so stale leads are
// processed before the limit cuts off.
func (r *Repository) ListOpenLeadIDs(ctx context.Context, tenantID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT l.id FROM leads l
		JOIN funnel_stages fs ON fs.id = l.funnel_stage_id
		WHERE l.organization_id = $1 AND fs.stage_type = 'open'
		ORDER BY COALESCE(l.last_message_at, l.created_at), l.id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open leads: %w", err)
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
