// Package service implements the automation rule engine: condition
// evaluation, action execution, and the per-rule execution log. Rules run in
// isolation; one rule panicking or failing never stops the others.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
	"crm_routing_backend/internal/events"
	"crm_routing_backend/platform/logger"
)

// RuleStore loads the active rules matching a trigger class.
type RuleStore interface {
	ListActiveRules(ctx context.Context, tenantID uuid.UUID, trigger domain.TriggerType) ([]domain.Rule, error)
}

// LogStore persists execution records.
type LogStore interface {
	Append(ctx context.Context, entry domain.LogEntry) error
}

// TriggerResult reports what a trigger invocation did.
type TriggerResult struct {
	RulesProcessed int
}

// Service orchestrates rule execution for a trigger event.
type Service struct {
	rules     RuleStore
	logs      LogStore
	evaluator *Evaluator
	executor  *Executor
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// NewService wires the rule engine. A nil clock defaults to time.Now.
func NewService(
	rules RuleStore,
	logs LogStore,
	evaluator *Evaluator,
	executor *Executor,
	bus events.Bus,
	log *logger.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		rules:     rules,
		logs:      logs,
		evaluator: evaluator,
		executor:  executor,
		bus:       bus,
		log:       log,
		now:       now,
	}
}

// Trigger runs every active rule registered for the event's trigger class.
// Each rule produces exactly one execution log entry. With no matching rules
// it returns zero processed and writes nothing.
func (s *Service) Trigger(ctx context.Context, event TriggerEvent) (TriggerResult, error) {
	if !event.TriggerType.Valid() {
		return TriggerResult{}, fmt.Errorf("unknown trigger type %q", event.TriggerType)
	}

	rules, err := s.rules.ListActiveRules(ctx, event.TenantID, event.TriggerType)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("failed to load automation rules: %w", err)
	}

	for _, rule := range rules {
		entry := s.runRule(ctx, rule, event)

		if err := s.logs.Append(ctx, entry); err != nil {
			// The execution already happened; losing the record must not
			// abort the remaining rules.
			s.log.DatabaseError("automation.append_log", err)
		}

		s.bus.Publish(ctx, events.AutomationRuleExecuted{
			BaseEvent:     events.NewBaseEvent(),
			RuleID:        rule.ID,
			TenantID:      event.TenantID,
			LeadID:        event.LeadID,
			TriggerType:   string(event.TriggerType),
			Status:        string(entry.Status),
			ConditionsMet: entry.ConditionsMet,
		})
		s.log.RuleExecuted(rule.ID.String(), string(event.TriggerType), string(entry.Status), entry.ConditionsMet)
	}

	return TriggerResult{RulesProcessed: len(rules)}, nil
}

// runRule evaluates and executes one rule, converting panics into an error
// status so a broken rule cannot take the engine down.
func (s *Service) runRule(ctx context.Context, rule domain.Rule, event TriggerEvent) (entry domain.LogEntry) {
	entry = domain.LogEntry{
		ID:          uuid.New(),
		TenantID:    event.TenantID,
		RuleID:      rule.ID,
		LeadID:      event.LeadID,
		TriggerType: event.TriggerType,
		TriggerData: triggerData(event),
		CreatedAt:   s.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("rule panicked: %v", r)
			entry.Status = domain.StatusError
			entry.ErrorMessage = &msg
			s.log.Error("automation rule panicked",
				"rule_id", rule.ID.String(),
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	met, err := s.evaluator.Evaluate(ctx, rule.Conditions, event)
	if err != nil {
		msg := err.Error()
		entry.Status = domain.StatusError
		entry.ErrorMessage = &msg
		return entry
	}
	entry.ConditionsMet = met
	if !met {
		entry.Status = domain.StatusSuccess
		return entry
	}

	entry.Actions = s.executor.Execute(ctx, event, rule.Actions)
	entry.Status = deriveStatus(entry.Actions)
	return entry
}

func triggerData(event TriggerEvent) map[string]any {
	data := map[string]any{"trigger_type": string(event.TriggerType)}
	if event.MessageContent != "" {
		data["message_content"] = event.MessageContent
	}
	return data
}

// deriveStatus folds per-action outcomes into the rule status: any failed
// action makes the run a partial failure, skipped actions do not.
func deriveStatus(outcomes []domain.ActionOutcome) domain.RuleStatus {
	for _, outcome := range outcomes {
		if outcome.Status == domain.ActionFailed {
			return domain.StatusPartialFailure
		}
	}
	return domain.StatusSuccess
}
