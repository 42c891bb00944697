package repository

import (
	"context"
	"errors"
	"fmt"

	"crm_routing_backend/internal/distribution/domain"
	"crm_routing_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Assign updates the lead's responsible agent and appends the assignment
// history record in a single transaction. One atomic write per invocation
// keeps the ledger and the lead from drifting apart.
func (r *Repository) Assign(ctx context.Context, record domain.AssignmentRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin assignment tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE leads SET responsible_agent_id = $1, assigned_agent_label = NULL, updated_at = now()
		WHERE id = $2 AND organization_id = $3`,
		record.ToAgent, record.LeadID, record.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO assignment_history (
			id, organization_id, lead_id, from_agent_id, to_agent_id,
			method, trigger_source, is_redistribution, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		record.ID, record.TenantID, record.LeadID, record.FromAgent, record.ToAgent,
		string(record.Method), string(record.TriggerSource), record.IsRedistribution,
	)
	if err != nil {
		return fmt.Errorf("failed to append assignment history: %w", err)
	}

	return tx.Commit(ctx)
}

// LastAssignment returns the tenant's most recent history record, the
// round-robin cursor. Returns (nil, nil) when the tenant has no history yet.
func (r *Repository) LastAssignment(ctx context.Context, tenantID uuid.UUID) (*domain.AssignmentRecord, error) {
	query := `SELECT id, organization_id, lead_id, from_agent_id, to_agent_id,
		method, trigger_source, is_redistribution, created_at
		FROM assignment_history
		WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`

	record, err := scanAssignment(r.pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last assignment: %w", err)
	}

	return record, nil
}

// ListHistory returns a tenant's assignment records, newest first.
func (r *Repository) ListHistory(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.AssignmentRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, organization_id, lead_id, from_agent_id, to_agent_id,
		method, trigger_source, is_redistribution, created_at
		FROM assignment_history
		WHERE organization_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment history: %w", err)
	}
	defer rows.Close()

	var records []domain.AssignmentRecord
	for rows.Next() {
		record, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment history: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

func scanAssignment(row pgx.Row) (*domain.AssignmentRecord, error) {
	var record domain.AssignmentRecord
	var method, triggerSource string

	err := row.Scan(
		&record.ID, &record.TenantID, &record.LeadID, &record.FromAgent, &record.ToAgent,
		&method, &triggerSource, &record.IsRedistribution, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Method = domain.Method(method)
	record.TriggerSource = domain.TriggerSource(triggerSource)
	return &record, nil
}
