package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
)

// TriggerEvent is the normalized input the rule engine evaluates rules
// against. MessageContent is only populated for message_received triggers.
type TriggerEvent struct {
	TenantID       uuid.UUID
	TriggerType    domain.TriggerType
	LeadID         *uuid.UUID
	MessageContent string
}

// ConversationState summarizes a lead's message history for condition checks.
type ConversationState struct {
	LastInboundAt  *time.Time
	LastOutboundAt *time.Time
	LeadCreatedAt  time.Time
}

// ConversationReader loads conversation state for lead-scoped conditions.
type ConversationReader interface {
	ConversationState(ctx context.Context, tenantID, leadID uuid.UUID) (ConversationState, error)
}

type conditionHandler func(ctx context.Context, cond domain.Condition, event TriggerEvent) (bool, error)

// Evaluator checks a rule's conditions against a trigger event. An empty
// condition list always passes; otherwise every condition must hold, and
// evaluation short-circuits on the first failure.
type Evaluator struct {
	conversations ConversationReader
	now           func() time.Time
	handlers      map[domain.ConditionType]conditionHandler
}

// NewEvaluator builds an evaluator. A nil clock defaults to time.Now.
func NewEvaluator(conversations ConversationReader, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	e := &Evaluator{conversations: conversations, now: now}
	e.handlers = map[domain.ConditionType]conditionHandler{
		domain.ConditionAlwaysTrue:        e.evalAlwaysTrue,
		domain.ConditionMessageContent:    e.evalMessageContent,
		domain.ConditionLastActivityAge:   e.evalLastActivityAge,
		domain.ConditionAgentResponseTime: e.evalAgentResponseTime,
		domain.ConditionTimeOfDay:         e.evalTimeOfDay,
	}
	return e
}

// Handles reports whether a handler is registered for the condition type.
// Exposed for the registry completeness test.
func (e *Evaluator) Handles(t domain.ConditionType) bool {
	_, ok := e.handlers[t]
	return ok
}

// Evaluate runs every condition in order. It returns false on the first
// condition that does not hold.
func (e *Evaluator) Evaluate(ctx context.Context, conditions []domain.Condition, event TriggerEvent) (bool, error) {
	for _, cond := range conditions {
		handler, ok := e.handlers[cond.Type]
		if !ok {
			return false, fmt.Errorf("no handler registered for condition type %q", cond.Type)
		}
		met, err := handler(ctx, cond, event)
		if err != nil {
			return false, fmt.Errorf("condition %s: %w", cond.Type, err)
		}
		if !met {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalAlwaysTrue(_ context.Context, _ domain.Condition, _ TriggerEvent) (bool, error) {
	return true, nil
}

func (e *Evaluator) evalMessageContent(_ context.Context, cond domain.Condition, event TriggerEvent) (bool, error) {
	message := strings.ToLower(strings.TrimSpace(event.MessageContent))
	if message == "" {
		return false, nil
	}

	switch cond.Operator {
	case domain.OperatorEquals:
		return message == strings.ToLower(strings.TrimSpace(cond.Value)), nil
	case domain.OperatorContains:
		for _, keyword := range strings.Split(cond.Value, ",") {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(message, keyword) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

func (e *Evaluator) evalLastActivityAge(ctx context.Context, cond domain.Condition, event TriggerEvent) (bool, error) {
	if event.LeadID == nil {
		return false, nil
	}

	state, err := e.conversations.ConversationState(ctx, event.TenantID, *event.LeadID)
	if err != nil {
		return false, err
	}

	// A lead that never exchanged a message has no activity to be recent.
	var lastMessage *time.Time
	if state.LastInboundAt != nil {
		lastMessage = state.LastInboundAt
	}
	if state.LastOutboundAt != nil && (lastMessage == nil || state.LastOutboundAt.After(*lastMessage)) {
		lastMessage = state.LastOutboundAt
	}
	if lastMessage == nil {
		return true, nil
	}

	age := e.now().Sub(*lastMessage)
	return age >= time.Duration(cond.Days)*24*time.Hour, nil
}

func (e *Evaluator) evalAgentResponseTime(ctx context.Context, cond domain.Condition, event TriggerEvent) (bool, error) {
	if event.LeadID == nil {
		return false, nil
	}

	state, err := e.conversations.ConversationState(ctx, event.TenantID, *event.LeadID)
	if err != nil {
		return false, err
	}
	// With no inbound message, or an outbound reply after the last inbound
	// one, nobody is waiting on the agent and the condition holds vacuously.
	if state.LastInboundAt == nil {
		return true, nil
	}
	if state.LastOutboundAt != nil && state.LastOutboundAt.After(*state.LastInboundAt) {
		return true, nil
	}

	waiting := e.now().Sub(*state.LastInboundAt)
	return waiting >= time.Duration(cond.Minutes)*time.Minute, nil
}

func (e *Evaluator) evalTimeOfDay(_ context.Context, cond domain.Condition, _ TriggerEvent) (bool, error) {
	start, err := time.Parse("15:04", cond.Start)
	if err != nil {
		return false, fmt.Errorf("invalid start %q", cond.Start)
	}
	end, err := time.Parse("15:04", cond.End)
	if err != nil {
		return false, fmt.Errorf("invalid end %q", cond.End)
	}

	now := e.now()
	current := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	// A start after the end is an overnight window crossing midnight.
	if startMin <= endMin {
		return current >= startMin && current <= endMin, nil
	}
	return current >= startMin || current <= endMin, nil
}
