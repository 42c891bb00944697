package domain

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType names the event class a rule listens on.
type TriggerType string

const (
	TriggerNewLead         TriggerType = "new_lead"
	TriggerMessageReceived TriggerType = "message_received"
	TriggerTimeBased       TriggerType = "time_based"
)

// Valid reports whether the trigger type is one of the known classes.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerNewLead, TriggerMessageReceived, TriggerTimeBased:
		return true
	}
	return false
}

// Rule is an automation rule with its conditions and actions already decoded
// and validated. Repositories never hand out rules with raw JSON payloads.
type Rule struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	TriggerType TriggerType
	IsActive    bool
	Conditions  []Condition
	Actions     []Action
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RuleStatus is the closed outcome set for one rule execution.
type RuleStatus string

const (
	StatusSuccess        RuleStatus = "success"
	StatusPartialFailure RuleStatus = "partial_failure"
	StatusError          RuleStatus = "error"
)

// ActionStatus is the closed outcome set for one executed action.
type ActionStatus string

const (
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
)

// ActionOutcome records what one action did during a rule run.
type ActionOutcome struct {
	Type   ActionType   `json:"type"`
	Status ActionStatus `json:"status"`
	Result string       `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// LogEntry is the execution record written for every evaluated rule,
// whether or not its conditions matched.
type LogEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	RuleID        uuid.UUID
	LeadID        *uuid.UUID
	TriggerType   TriggerType
	TriggerData   map[string]any
	ConditionsMet bool
	Actions       []ActionOutcome
	Status        RuleStatus
	ErrorMessage  *string
	CreatedAt     time.Time
}
