package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
)

type fakeConversations struct {
	state ConversationState
	err   error
}

func (f *fakeConversations) ConversationState(_ context.Context, _, _ uuid.UUID) (ConversationState, error) {
	return f.state, f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var evalNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func leadEvent(leadID uuid.UUID, message string) TriggerEvent {
	return TriggerEvent{
		TenantID:       uuid.New(),
		TriggerType:    domain.TriggerMessageReceived,
		LeadID:         &leadID,
		MessageContent: message,
	}
}

func TestEvaluatorRegistryCoversEveryConditionType(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, nil)
	for _, conditionType := range domain.ConditionTypes() {
		if !evaluator.Handles(conditionType) {
			t.Fatalf("no handler registered for condition type %q", conditionType)
		}
	}
}

func TestEmptyConditionListAlwaysPasses(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow))

	met, err := evaluator.Evaluate(context.Background(), nil, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("empty condition list must pass")
	}
}

func TestMessageContentContainsMatchesAnyKeywordSubstring(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow))
	condition := domain.Condition{
		Type:     domain.ConditionMessageContent,
		Operator: domain.OperatorContains,
		Value:    "urgente,prazo",
	}

	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{condition},
		leadEvent(uuid.New(), "É URGENTE, por favor me retornem hoje"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("keyword substring must match case-insensitively")
	}

	// "urgência" is not a substring match for the keyword "urgente".
	met, err = evaluator.Evaluate(context.Background(), []domain.Condition{condition},
		leadEvent(uuid.New(), "Preciso disso com urgência"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if met {
		t.Fatal("near-miss word must not match")
	}
}

func TestMessageContentEqualsRequiresWholeMessage(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow))
	condition := domain.Condition{
		Type:     domain.ConditionMessageContent,
		Operator: domain.OperatorEquals,
		Value:    "SIM",
	}

	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), "sim"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("equals must be case-insensitive")
	}

	met, err = evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), "sim, pode ser"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if met {
		t.Fatal("equals must not match a longer message")
	}
}

func TestMessageContentWithEmptyMessageDoesNotMatch(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow))
	condition := domain.Condition{
		Type:     domain.ConditionMessageContent,
		Operator: domain.OperatorContains,
		Value:    "urgente",
	}

	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if met {
		t.Fatal("missing message content must not match")
	}
}

func TestLastActivityAgeComparesAgainstNewestActivity(t *testing.T) {
	inbound := evalNow.Add(-5 * 24 * time.Hour)
	outbound := evalNow.Add(-2 * 24 * time.Hour)
	conversations := &fakeConversations{state: ConversationState{
		LeadCreatedAt:  evalNow.Add(-30 * 24 * time.Hour),
		LastInboundAt:  &inbound,
		LastOutboundAt: &outbound,
	}}
	evaluator := NewEvaluator(conversations, fixedClock(evalNow))

	threeDays := domain.Condition{Type: domain.ConditionLastActivityAge, Days: 3}
	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{threeDays}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if met {
		t.Fatal("outbound two days ago must reset the activity age")
	}

	oneDay := domain.Condition{Type: domain.ConditionLastActivityAge, Days: 1}
	met, err = evaluator.Evaluate(context.Background(), []domain.Condition{oneDay}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("two days of silence must satisfy a one-day threshold")
	}
}

func TestLastActivityAgePassesWithoutAnyMessage(t *testing.T) {
	conversations := &fakeConversations{state: ConversationState{
		LeadCreatedAt: evalNow.Add(-time.Hour),
	}}
	evaluator := NewEvaluator(conversations, fixedClock(evalNow))

	condition := domain.Condition{Type: domain.ConditionLastActivityAge, Days: 7}
	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("a lead with no messages has no recent activity and must pass")
	}
}

func TestAgentResponseTimeMeasuresUnansweredWait(t *testing.T) {
	inbound := evalNow.Add(-45 * time.Minute)
	evaluator := NewEvaluator(&fakeConversations{state: ConversationState{
		LeadCreatedAt: evalNow.Add(-time.Hour),
		LastInboundAt: &inbound,
	}}, fixedClock(evalNow))

	condition := domain.Condition{Type: domain.ConditionAgentResponseTime, Minutes: 30}
	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("45 unanswered minutes must satisfy a 30-minute threshold")
	}

	// An agent reply after the inbound message means nobody is waiting, so
	// the condition holds vacuously.
	outbound := evalNow.Add(-10 * time.Minute)
	evaluator = NewEvaluator(&fakeConversations{state: ConversationState{
		LeadCreatedAt:  evalNow.Add(-time.Hour),
		LastInboundAt:  &inbound,
		LastOutboundAt: &outbound,
	}}, fixedClock(evalNow))

	met, err = evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("an answered conversation satisfies the condition vacuously")
	}

	recent := evalNow.Add(-5 * time.Minute)
	evaluator = NewEvaluator(&fakeConversations{state: ConversationState{
		LeadCreatedAt: evalNow.Add(-time.Hour),
		LastInboundAt: &recent,
	}}, fixedClock(evalNow))

	met, err = evaluator.Evaluate(context.Background(), []domain.Condition{condition}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if met {
		t.Fatal("5 waiting minutes must not satisfy a 30-minute threshold")
	}
}

func TestLeadScopedConditionsWithoutLeadDoNotMatch(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow))
	event := TriggerEvent{TenantID: uuid.New(), TriggerType: domain.TriggerTimeBased}

	for _, condition := range []domain.Condition{
		{Type: domain.ConditionLastActivityAge, Days: 1},
		{Type: domain.ConditionAgentResponseTime, Minutes: 1},
	} {
		met, err := evaluator.Evaluate(context.Background(), []domain.Condition{condition}, event)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if met {
			t.Fatalf("condition %s without a lead must not match", condition.Type)
		}
	}
}

func TestTimeOfDayWindowsIncludingOvernight(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow)) // 14:00

	business := domain.Condition{Type: domain.ConditionTimeOfDay, Start: "09:00", End: "18:00"}
	met, err := evaluator.Evaluate(context.Background(), []domain.Condition{business}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("14:00 is inside business hours")
	}

	overnight := domain.Condition{Type: domain.ConditionTimeOfDay, Start: "22:00", End: "06:00"}
	met, err = evaluator.Evaluate(context.Background(), []domain.Condition{overnight}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if met {
		t.Fatal("14:00 is outside the overnight window")
	}

	lateEvaluator := NewEvaluator(&fakeConversations{}, fixedClock(time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)))
	met, err = lateEvaluator.Evaluate(context.Background(), []domain.Condition{overnight}, leadEvent(uuid.New(), ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !met {
		t.Fatal("23:30 is inside the overnight window")
	}
}

func TestEvaluateShortCircuitsOnFirstFailedCondition(t *testing.T) {
	evaluator := NewEvaluator(&fakeConversations{}, fixedClock(evalNow))

	conditions := []domain.Condition{
		{Type: domain.ConditionMessageContent, Operator: domain.OperatorContains, Value: "urgente"},
		// Unknown operator would error if it were ever evaluated.
		{Type: domain.ConditionMessageContent, Operator: "fuzzy", Value: "urgente"},
	}

	met, err := evaluator.Evaluate(context.Background(), conditions, leadEvent(uuid.New(), "tudo certo"))
	if err != nil {
		t.Fatalf("expected short-circuit before the malformed condition, got %v", err)
	}
	if met {
		t.Fatal("first condition did not match, so the rule must not pass")
	}
}
