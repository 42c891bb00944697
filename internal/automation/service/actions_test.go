package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
	"crm_routing_backend/platform/logger"
)

type fakeChannel struct {
	sent    []string
	typing  []int
	sendErr error
	typeErr error
}

func (f *fakeChannel) SendText(_ context.Context, _, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChannel) SetTyping(_ context.Context, _ string, seconds int) error {
	if f.typeErr != nil {
		return f.typeErr
	}
	f.typing = append(f.typing, seconds)
	return nil
}

type fakeChannelResolver struct {
	channel  *fakeChannel
	resolved int
	err      error
}

func (f *fakeChannelResolver) ResolveForLead(_ context.Context, _, _ uuid.UUID) (Channel, string, error) {
	f.resolved++
	if f.err != nil {
		return nil, "", f.err
	}
	if f.channel == nil {
		return nil, "", nil
	}
	return f.channel, "+5511999990000", nil
}

type fakeLeadWriter struct {
	stageChanges []uuid.UUID
	assigned     []uuid.UUID
	labels       []string
	stageErr     error
}

func (f *fakeLeadWriter) UpdateStage(_ context.Context, _, _ uuid.UUID, stageID uuid.UUID) error {
	if f.stageErr != nil {
		return f.stageErr
	}
	f.stageChanges = append(f.stageChanges, stageID)
	return nil
}

func (f *fakeLeadWriter) AssignAgent(_ context.Context, _, _ uuid.UUID, agentID uuid.UUID) error {
	f.assigned = append(f.assigned, agentID)
	return nil
}

func (f *fakeLeadWriter) SetAgentLabel(_ context.Context, _, _ uuid.UUID, label string) error {
	f.labels = append(f.labels, label)
	return nil
}

type fakeDirectory struct {
	byEmail map[string]uuid.UUID
}

func (f *fakeDirectory) FindUserIDByEmail(_ context.Context, _ uuid.UUID, email string) (*uuid.UUID, error) {
	if id, ok := f.byEmail[email]; ok {
		return &id, nil
	}
	return nil, nil
}

func executorFixture(channel *fakeChannel) (*Executor, *fakeChannelResolver, *fakeLeadWriter, *fakeDirectory) {
	resolver := &fakeChannelResolver{channel: channel}
	leads := &fakeLeadWriter{}
	users := &fakeDirectory{byEmail: map[string]uuid.UUID{}}
	executor := NewExecutor(resolver, leads, users, logger.New("development"))
	return executor, resolver, leads, users
}

func eventWithLead() TriggerEvent {
	leadID := uuid.New()
	return TriggerEvent{TenantID: uuid.New(), TriggerType: domain.TriggerNewLead, LeadID: &leadID}
}

func TestExecutorRegistryCoversEveryActionType(t *testing.T) {
	executor, _, _, _ := executorFixture(&fakeChannel{})
	for _, actionType := range domain.ActionTypes() {
		if !executor.Handles(actionType) {
			t.Fatalf("no handler registered for action type %q", actionType)
		}
	}
}

func TestFailingActionDoesNotStopTheNextOne(t *testing.T) {
	channel := &fakeChannel{typeErr: errors.New("gateway timeout")}
	executor, _, _, _ := executorFixture(channel)

	actions := []domain.Action{
		{Type: domain.ActionSetTypingStatus, DurationSeconds: 5},
		{Type: domain.ActionSendMessage, Text: "Olá!"},
	}

	outcomes := executor.Execute(context.Background(), eventWithLead(), actions)
	if len(outcomes) != 2 {
		t.Fatalf("expected one outcome per action, got %d", len(outcomes))
	}
	if outcomes[0].Status != domain.ActionFailed {
		t.Fatalf("expected first action to fail, got %s", outcomes[0].Status)
	}
	if outcomes[0].Error == "" {
		t.Fatal("failed outcome must carry the error")
	}
	if outcomes[1].Status != domain.ActionSucceeded {
		t.Fatalf("expected second action to still run, got %s", outcomes[1].Status)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("expected the message to be sent, got %d sends", len(channel.sent))
	}
}

func TestChannelActionsAreSkippedWithoutConnectedChannel(t *testing.T) {
	executor, resolver, leads, _ := executorFixture(nil)

	stageID := uuid.New()
	actions := []domain.Action{
		{Type: domain.ActionSetTypingStatus, DurationSeconds: 5},
		{Type: domain.ActionSendMessage, Text: "Olá!"},
		{Type: domain.ActionChangeStage, StageID: &stageID},
	}

	outcomes := executor.Execute(context.Background(), eventWithLead(), actions)
	if outcomes[0].Status != domain.ActionSkipped || outcomes[1].Status != domain.ActionSkipped {
		t.Fatalf("channel actions must be skipped, got %s and %s", outcomes[0].Status, outcomes[1].Status)
	}
	if outcomes[2].Status != domain.ActionSucceeded {
		t.Fatalf("lead-only action must still run, got %s", outcomes[2].Status)
	}
	if len(leads.stageChanges) != 1 {
		t.Fatal("expected the stage change to be applied")
	}
	if resolver.resolved != 1 {
		t.Fatalf("channel must be resolved once per run, got %d resolutions", resolver.resolved)
	}
}

func TestAssignAgentResolvesEmailToUser(t *testing.T) {
	executor, _, leads, users := executorFixture(&fakeChannel{})
	agentID := uuid.New()
	users.byEmail["ana@empresa.com.br"] = agentID

	outcomes := executor.Execute(context.Background(), eventWithLead(), []domain.Action{
		{Type: domain.ActionAssignAgent, AgentRef: "ana@empresa.com.br"},
	})

	if outcomes[0].Status != domain.ActionSucceeded {
		t.Fatalf("expected success, got %s (%s)", outcomes[0].Status, outcomes[0].Error)
	}
	if len(leads.assigned) != 1 || leads.assigned[0] != agentID {
		t.Fatal("expected the resolved user to be assigned")
	}
	if len(leads.labels) != 0 {
		t.Fatal("a resolved email must not leave a label")
	}
}

func TestAssignAgentKeepsUnresolvedReferenceAsLabel(t *testing.T) {
	executor, _, leads, _ := executorFixture(&fakeChannel{})

	outcomes := executor.Execute(context.Background(), eventWithLead(), []domain.Action{
		{Type: domain.ActionAssignAgent, AgentRef: "plantao-noturno"},
	})

	if outcomes[0].Status != domain.ActionSucceeded {
		t.Fatalf("expected success, got %s (%s)", outcomes[0].Status, outcomes[0].Error)
	}
	if len(leads.labels) != 1 || leads.labels[0] != "plantao-noturno" {
		t.Fatalf("expected the raw reference as label, got %v", leads.labels)
	}
	if len(leads.assigned) != 0 {
		t.Fatal("an unresolved reference must not assign a user")
	}
}

func TestDisabledTypingActionSucceedsWithoutChannel(t *testing.T) {
	executor, resolver, _, _ := executorFixture(nil)

	disabled := false
	outcomes := executor.Execute(context.Background(), eventWithLead(), []domain.Action{
		{Type: domain.ActionSetTypingStatus, DurationSeconds: 5, Enabled: &disabled},
	})

	if outcomes[0].Status != domain.ActionSucceeded {
		t.Fatalf("disabled typing must succeed, got %s", outcomes[0].Status)
	}
	if resolver.resolved != 0 {
		t.Fatal("disabled typing must not resolve the channel")
	}
}
