package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"crm_routing_backend/internal/automation/domain"
	"crm_routing_backend/platform/apperr"
)

const ruleNotFoundMsg = "automation rule not found"

// CreateRule inserts a rule and returns it with server-side timestamps.
func (r *Repository) CreateRule(ctx context.Context, rule domain.Rule) (*domain.Rule, error) {
	conditions, actions, err := encodeRulePayloads(rule)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO automation_rules
		(id, organization_id, name, trigger_type, is_active, conditions, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		rule.ID, rule.TenantID, rule.Name, string(rule.TriggerType), rule.IsActive,
		conditions, actions,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation rule: %w", err)
	}

	return &rule, nil
}

// UpdateRule replaces a rule's mutable fields.
func (r *Repository) UpdateRule(ctx context.Context, rule domain.Rule) (*domain.Rule, error) {
	conditions, actions, err := encodeRulePayloads(rule)
	if err != nil {
		return nil, err
	}

	query := `UPDATE automation_rules
		SET name = $1, trigger_type = $2, is_active = $3, conditions = $4, actions = $5, updated_at = NOW()
		WHERE id = $6 AND organization_id = $7
		RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		rule.Name, string(rule.TriggerType), rule.IsActive, conditions, actions,
		rule.ID, rule.TenantID,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(ruleNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to update automation rule: %w", err)
	}

	return &rule, nil
}

// DeleteRule removes a rule. Execution logs are kept.
func (r *Repository) DeleteRule(ctx context.Context, ruleID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM automation_rules WHERE id = $1 AND organization_id = $2`,
		ruleID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete automation rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(ruleNotFoundMsg)
	}
	return nil
}

// GetRule loads one rule.
func (r *Repository) GetRule(ctx context.Context, ruleID, tenantID uuid.UUID) (*domain.Rule, error) {
	query := `SELECT id, organization_id, name, trigger_type, is_active, conditions, actions, created_at, updated_at
		FROM automation_rules WHERE id = $1 AND organization_id = $2`

	rule, err := scanRule(r.pool.QueryRow(ctx, query, ruleID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(ruleNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get automation rule: %w", err)
	}
	return rule, nil
}

// ListRules returns every rule for a tenant, newest first.
func (r *Repository) ListRules(ctx context.Context, tenantID uuid.UUID) ([]domain.Rule, error) {
	query := `SELECT id, organization_id, name, trigger_type, is_active, conditions, actions, created_at, updated_at
		FROM automation_rules WHERE organization_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}

	return rules, rows.Err()
}

// ListLogs returns recent execution records for a tenant, optionally filtered
// by rule, newest first.
func (r *Repository) ListLogs(ctx context.Context, tenantID uuid.UUID, ruleID *uuid.UUID, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `SELECT id, organization_id, rule_id, lead_id, trigger_data, conditions_met, actions_executed, status, error_message, created_at
		FROM automation_logs WHERE organization_id = $1`
	args := []interface{}{tenantID}

	if ruleID != nil {
		query += ` AND rule_id = $2`
		args = append(args, *ruleID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var status string
		var triggerData, actions []byte
		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.RuleID, &entry.LeadID,
			&triggerData, &entry.ConditionsMet, &actions, &status,
			&entry.ErrorMessage, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan automation log: %w", err)
		}
		entry.Status = domain.RuleStatus(status)
		if len(triggerData) > 0 {
			if err := json.Unmarshal(triggerData, &entry.TriggerData); err != nil {
				return nil, fmt.Errorf("failed to decode trigger data for log %s: %w", entry.ID, err)
			}
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &entry.Actions); err != nil {
				return nil, fmt.Errorf("failed to decode action outcomes for log %s: %w", entry.ID, err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func encodeRulePayloads(rule domain.Rule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return conditions, actions, nil
}
