package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestDecodeActionsAcceptsKnownVariants(t *testing.T) {
	stageID := uuid.New()
	raw := []byte(`[
		{"type": "set_typing_status", "duration_seconds": 5},
		{"type": "send_message", "text": "Olá! Já estamos cuidando do seu atendimento."},
		{"type": "change_stage", "stage_id": "` + stageID.String() + `"},
		{"type": "assign_agent", "agent_ref": "ana@empresa.com.br"}
	]`)

	actions, err := DecodeActions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(actions))
	}
	if actions[2].StageID == nil || *actions[2].StageID != stageID {
		t.Fatal("expected stage id to decode")
	}
}

func TestDecodeActionsRejectsMissingVariantFields(t *testing.T) {
	cases := []string{
		`[{"type": "set_typing_status"}]`,
		`[{"type": "send_message"}]`,
		`[{"type": "change_stage"}]`,
		`[{"type": "assign_agent"}]`,
		`[{"type": "launch_rocket"}]`,
	}

	for _, raw := range cases {
		if _, err := DecodeActions([]byte(raw)); err == nil {
			t.Fatalf("expected validation error for %s", raw)
		}
	}
}

func TestTypingEnabledDefaultsToTrue(t *testing.T) {
	action := Action{Type: ActionSetTypingStatus, DurationSeconds: 3}
	if !action.TypingEnabled() {
		t.Fatal("absent enabled flag must mean enabled")
	}

	disabled := false
	action.Enabled = &disabled
	if action.TypingEnabled() {
		t.Fatal("explicit false must disable typing")
	}
}
