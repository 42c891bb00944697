// Package transport defines the automation module's request/response DTOs.
package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
)

// TriggerRequest is the invocation body sent by the CRM's ingestion layer
// when a trigger event fires.
type TriggerRequest struct {
	TriggerType string          `json:"trigger_type" validate:"required,oneof=new_lead message_received time_based"`
	TriggerData TriggerDataBody `json:"trigger_data" validate:"required"`
}

// TriggerDataBody carries the event context. Message content is only present
// for message_received triggers.
type TriggerDataBody struct {
	OrganizationID uuid.UUID  `json:"organization_id" validate:"required"`
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	MessageContent string     `json:"message_content,omitempty"`
}

// TriggerResponse reports how many rules the engine processed.
type TriggerResponse struct {
	Success        bool   `json:"success"`
	ProcessedRules int    `json:"processed_rules"`
	Error          string `json:"error,omitempty"`
}

// RuleRequest creates or updates an automation rule. Conditions and actions
// arrive as raw JSON and are decoded into typed variants at the boundary so
// malformed rules are rejected before they are ever stored.
type RuleRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	TriggerType string          `json:"trigger_type" validate:"required,oneof=new_lead message_received time_based"`
	IsActive    bool            `json:"is_active"`
	Conditions  json.RawMessage `json:"conditions"`
	Actions     json.RawMessage `json:"actions" validate:"required"`
}

// RuleResponse is the API view of an automation rule.
type RuleResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	TriggerType string             `json:"trigger_type"`
	IsActive    bool               `json:"is_active"`
	Conditions  []domain.Condition `json:"conditions"`
	Actions     []domain.Action    `json:"actions"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ToRuleResponse maps a domain rule to its API view.
func ToRuleResponse(rule domain.Rule) RuleResponse {
	return RuleResponse{
		ID:          rule.ID,
		Name:        rule.Name,
		TriggerType: string(rule.TriggerType),
		IsActive:    rule.IsActive,
		Conditions:  rule.Conditions,
		Actions:     rule.Actions,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

// LogEntryResponse is the API view of one rule execution record.
type LogEntryResponse struct {
	ID            uuid.UUID              `json:"id"`
	RuleID        uuid.UUID              `json:"rule_id"`
	LeadID        *uuid.UUID             `json:"lead_id,omitempty"`
	TriggerData   map[string]any         `json:"trigger_data,omitempty"`
	ConditionsMet bool                   `json:"conditions_met"`
	Actions       []domain.ActionOutcome `json:"actions_executed,omitempty"`
	Status        string                 `json:"status"`
	ErrorMessage  *string                `json:"error_message,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ToLogEntryResponse maps a domain log entry to its API view.
func ToLogEntryResponse(entry domain.LogEntry) LogEntryResponse {
	return LogEntryResponse{
		ID:            entry.ID,
		RuleID:        entry.RuleID,
		LeadID:        entry.LeadID,
		TriggerData:   entry.TriggerData,
		ConditionsMet: entry.ConditionsMet,
		Actions:       entry.Actions,
		Status:        string(entry.Status),
		ErrorMessage:  entry.ErrorMessage,
		CreatedAt:     entry.CreatedAt,
	}
}
