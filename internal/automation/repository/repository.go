package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crm_routing_backend/internal/automation/domain"
	"crm_routing_backend/internal/automation/service"
	"crm_routing_backend/platform/apperr"
)

// Repository provides database operations for the automation engine. It
// implements every port the automation service depends on.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new automation repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveRules loads the active rules for a trigger class with their
// conditions and actions decoded and validated. A rule with a payload that no
// longer decodes is rejected here rather than half-executed later.
func (r *Repository) ListActiveRules(ctx context.Context, tenantID uuid.UUID, trigger domain.TriggerType) ([]domain.Rule, error) {
	query := `SELECT id, organization_id, name, trigger_type, is_active, conditions, actions, created_at, updated_at
		FROM automation_rules
		WHERE organization_id = $1 AND trigger_type = $2 AND is_active = true
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, tenantID, string(trigger))
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

// Append persists one execution record.
func (r *Repository) Append(ctx context.Context, entry domain.LogEntry) error {
	triggerData, err := json.Marshal(entry.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to encode trigger data: %w", err)
	}
	actions, err := json.Marshal(entry.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode action outcomes: %w", err)
	}

	query := `INSERT INTO automation_logs
		(id, organization_id, rule_id, lead_id, trigger_data, conditions_met, actions_executed, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.TenantID, entry.RuleID, entry.LeadID,
		triggerData, entry.ConditionsMet, actions, string(entry.Status),
		entry.ErrorMessage, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append automation log: %w", err)
	}
	return nil
}

// ConversationState summarizes a lead's message history for condition checks.
// Leads with no messages fall back to the lead's creation time.
func (r *Repository) ConversationState(ctx context.Context, tenantID, leadID uuid.UUID) (service.ConversationState, error) {
	query := `SELECT l.created_at,
			MAX(m.created_at) FILTER (WHERE m.direction = 'inbound') AS last_inbound,
			MAX(m.created_at) FILTER (WHERE m.direction = 'outbound') AS last_outbound
		FROM leads l
		LEFT JOIN chat_messages m ON m.lead_id = l.id
		WHERE l.id = $1 AND l.organization_id = $2
		GROUP BY l.created_at`

	var state service.ConversationState
	err := r.pool.QueryRow(ctx, query, leadID, tenantID).Scan(
		&state.LeadCreatedAt, &state.LastInboundAt, &state.LastOutboundAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, apperr.NotFound("lead not found")
		}
		return state, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return state, nil
}

// UpdateStage moves a lead to another funnel stage.
func (r *Repository) UpdateStage(ctx context.Context, tenantID, leadID, stageID uuid.UUID) error {
	query := `UPDATE leads SET funnel_stage_id = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
		AND EXISTS (SELECT 1 FROM funnel_stages WHERE id = $1 AND organization_id = $3)`

	tag, err := r.pool.Exec(ctx, query, stageID, leadID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update lead stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead or stage not found")
	}
	return nil
}

// AssignAgent sets the lead's responsible agent and clears any label left by
// an unresolved reference.
func (r *Repository) AssignAgent(ctx context.Context, tenantID, leadID, agentID uuid.UUID) error {
	query := `UPDATE leads SET responsible_agent_id = $1, assigned_agent_label = NULL, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3`

	tag, err := r.pool.Exec(ctx, query, agentID, leadID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to assign agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

// SetAgentLabel stores a raw agent reference that matched no user. The
// responsible agent stays untouched so a real assignment is never lost to a
// typo in a rule.
func (r *Repository) SetAgentLabel(ctx context.Context, tenantID, leadID uuid.UUID, label string) error {
	query := `UPDATE leads SET assigned_agent_label = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3`

	tag, err := r.pool.Exec(ctx, query, label, leadID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to set agent label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

// FindUserIDByEmail resolves an agent email to a user id. Returns (nil, nil)
// when no user matches.
func (r *Repository) FindUserIDByEmail(ctx context.Context, _ uuid.UUID, email string) (*uuid.UUID, error) {
	query := `SELECT id FROM users WHERE LOWER(email) = LOWER($1)`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &id, nil
}

// LeadChannel is the connected channel instance bound to a lead plus the
// lead's phone, the destination for outbound messages.
type LeadChannel struct {
	InstanceID uuid.UUID
	BaseURL    string
	APIKey     string
	LeadPhone  string
}

// GetLeadChannel returns the lead's connected channel instance, or (nil, nil)
// when the lead has no connected instance.
func (r *Repository) GetLeadChannel(ctx context.Context, tenantID, leadID uuid.UUID) (*LeadChannel, error) {
	query := `SELECT ci.id, ci.base_url, ci.api_key, l.phone
		FROM leads l
		JOIN channel_instances ci ON ci.id = l.channel_instance_id
		WHERE l.id = $1 AND l.organization_id = $2 AND ci.is_connected = true`

	var channel LeadChannel
	err := r.pool.QueryRow(ctx, query, leadID, tenantID).Scan(
		&channel.InstanceID, &channel.BaseURL, &channel.APIKey, &channel.LeadPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead channel: %w", err)
	}
	return &channel, nil
}

func scanRule(row pgx.Row) (*domain.Rule, error) {
	var rule domain.Rule
	var trigger string
	var conditions, actions []byte

	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &trigger, &rule.IsActive,
		&conditions, &actions, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.TriggerType = domain.TriggerType(trigger)
	if rule.Conditions, err = domain.DecodeConditions(conditions); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	if rule.Actions, err = domain.DecodeActions(actions); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	return &rule, nil
}
