package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ActionType tags an action variant. Like conditions, the set is closed and
// every variant must have an executor handler registered.
type ActionType string

const (
	ActionSetTypingStatus ActionType = "set_typing_status"
	ActionSendMessage     ActionType = "send_message"
	ActionChangeStage     ActionType = "change_stage"
	ActionAssignAgent     ActionType = "assign_agent"
)

// ActionTypes lists every action variant.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionSetTypingStatus,
		ActionSendMessage,
		ActionChangeStage,
		ActionAssignAgent,
	}
}

// Action is one typed rule action.
type Action struct {
	Type ActionType `json:"type"`

	// set_typing_status
	DurationSeconds int   `json:"duration_seconds,omitempty"`
	Enabled         *bool `json:"enabled,omitempty"`

	// send_message
	Text string `json:"text,omitempty"`

	// change_stage
	StageID *uuid.UUID `json:"stage_id,omitempty"`

	// assign_agent, an agent email or raw label
	AgentRef string `json:"agent_ref,omitempty"`
}

// TypingEnabled reports whether a set_typing_status action should signal
// composing. Absent means enabled.
func (a Action) TypingEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Validate checks the variant's required fields.
func (a Action) Validate() error {
	switch a.Type {
	case ActionSetTypingStatus:
		if a.DurationSeconds <= 0 {
			return fmt.Errorf("set_typing_status action requires duration_seconds > 0")
		}
		return nil
	case ActionSendMessage:
		if a.Text == "" {
			return fmt.Errorf("send_message action requires text")
		}
		return nil
	case ActionChangeStage:
		if a.StageID == nil || *a.StageID == uuid.Nil {
			return fmt.Errorf("change_stage action requires stage_id")
		}
		return nil
	case ActionAssignAgent:
		if a.AgentRef == "" {
			return fmt.Errorf("assign_agent action requires agent_ref")
		}
		return nil
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// DecodeActions parses the JSON storage form and validates every entry.
func DecodeActions(raw []byte) ([]Action, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var actions []Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}

	for i, action := range actions {
		if err := action.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	return actions, nil
}
