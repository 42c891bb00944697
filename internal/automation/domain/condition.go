// Package domain holds the automation engine's rule model: typed condition
// and action variants decoded from their JSON storage form at the boundary,
// validated once, and never re-parsed inside handlers.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConditionType tags a condition variant. The set is closed; adding a variant
// requires a matching evaluator handler, which the registry test enforces.
type ConditionType string

const (
	ConditionAlwaysTrue        ConditionType = "always_true"
	ConditionMessageContent    ConditionType = "message_content"
	ConditionLastActivityAge   ConditionType = "last_activity_age"
	ConditionAgentResponseTime ConditionType = "agent_response_time"
	ConditionTimeOfDay         ConditionType = "time_of_day"
)

// ConditionTypes lists every condition variant.
func ConditionTypes() []ConditionType {
	return []ConditionType{
		ConditionAlwaysTrue,
		ConditionMessageContent,
		ConditionLastActivityAge,
		ConditionAgentResponseTime,
		ConditionTimeOfDay,
	}
}

// MatchOperator selects how message content is compared.
type MatchOperator string

const (
	// OperatorContains treats the value as a comma-separated keyword list and
	// passes when the message contains any keyword as a substring.
	OperatorContains MatchOperator = "contains"
	// OperatorEquals requires exact case-insensitive equality with the whole message.
	OperatorEquals MatchOperator = "equals"
)

// Condition is one typed rule condition. Fields beyond Type are
// variant-specific; Validate enforces the combination.
type Condition struct {
	Type ConditionType `json:"type"`

	// message_content
	Operator MatchOperator `json:"operator,omitempty"`
	Value    string        `json:"value,omitempty"`

	// last_activity_age
	Days int `json:"days,omitempty"`

	// agent_response_time
	Minutes int `json:"minutes,omitempty"`

	// time_of_day, "HH:MM" 24h local
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Validate checks the variant's required fields.
func (c Condition) Validate() error {
	switch c.Type {
	case ConditionAlwaysTrue:
		return nil
	case ConditionMessageContent:
		if c.Operator != OperatorContains && c.Operator != OperatorEquals {
			return fmt.Errorf("message_content condition requires operator contains or equals, got %q", c.Operator)
		}
		if c.Value == "" {
			return fmt.Errorf("message_content condition requires a value")
		}
		return nil
	case ConditionLastActivityAge:
		if c.Days <= 0 {
			return fmt.Errorf("last_activity_age condition requires days > 0")
		}
		return nil
	case ConditionAgentResponseTime:
		if c.Minutes <= 0 {
			return fmt.Errorf("agent_response_time condition requires minutes > 0")
		}
		return nil
	case ConditionTimeOfDay:
		if err := validateClock(c.Start); err != nil {
			return fmt.Errorf("time_of_day condition start: %w", err)
		}
		if err := validateClock(c.End); err != nil {
			return fmt.Errorf("time_of_day condition end: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
}

// DecodeConditions parses the JSON storage form and validates every entry.
func DecodeConditions(raw []byte) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var conditions []Condition
	if err := json.Unmarshal(raw, &conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions: %w", err)
	}

	for i, condition := range conditions {
		if err := condition.Validate(); err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
	}

	return conditions, nil
}

func validateClock(value string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return fmt.Errorf("expected HH:MM, got %q", value)
	}
	return nil
}
