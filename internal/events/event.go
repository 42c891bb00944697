// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_routing_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Distribution Domain Events
// =============================================================================

// LeadAssigned is published when the distribution orchestrator assigns a lead
// to an agent for the first time.
type LeadAssigned struct {
	BaseEvent
	LeadID        uuid.UUID  `json:"leadId"`
	TenantID      uuid.UUID  `json:"tenantId"`
	AgentID       uuid.UUID  `json:"agentId"`
	PreviousAgent *uuid.UUID `json:"previousAgent,omitempty"`
	Method        string     `json:"method"`
	TriggerSource string     `json:"triggerSource"`
}

func (e LeadAssigned) EventName() string { return "distribution.lead.assigned" }

// LeadRedistributed is published when an already-assigned lead is routed to a
// new agent (manual reassignment or the auto-redistribution sweep).
type LeadRedistributed struct {
	BaseEvent
	LeadID    uuid.UUID  `json:"leadId"`
	TenantID  uuid.UUID  `json:"tenantId"`
	FromAgent *uuid.UUID `json:"fromAgent,omitempty"`
	ToAgent   uuid.UUID  `json:"toAgent"`
	Method    string     `json:"method"`
}

func (e LeadRedistributed) EventName() string { return "distribution.lead.redistributed" }

// =============================================================================
// Automation Domain Events
// =============================================================================

// AutomationRuleExecuted is published after each rule evaluation, whatever the
// outcome. Consumers must treat it as at-least-once.
type AutomationRuleExecuted struct {
	BaseEvent
	RuleID        uuid.UUID  `json:"ruleId"`
	TenantID      uuid.UUID  `json:"tenantId"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	TriggerType   string     `json:"triggerType"`
	Status        string     `json:"status"`
	ConditionsMet bool       `json:"conditionsMet"`
}

func (e AutomationRuleExecuted) EventName() string { return "automation.rule.executed" }
