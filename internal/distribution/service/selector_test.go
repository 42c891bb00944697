package service

import (
	"context"
	"math/rand"
	"testing"

	"crm_routing_backend/internal/distribution/domain"

	"github.com/google/uuid"
)

type fakeHistory struct {
	last *domain.AssignmentRecord
	err  error
}

func (f *fakeHistory) LastAssignment(_ context.Context, _ uuid.UUID) (*domain.AssignmentRecord, error) {
	return f.last, f.err
}

func candidateList(ids ...uuid.UUID) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, domain.Candidate{AgentID: id, PriorityWeight: 1})
	}
	return candidates
}

func containsAgent(candidates []domain.Candidate, id uuid.UUID) bool {
	for _, candidate := range candidates {
		if candidate.AgentID == id {
			return true
		}
	}
	return false
}

func TestRoundRobinStartsAtFirstCandidateWithoutHistory(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()
	selector := NewSelector(&fakeHistory{}, rand.New(rand.NewSource(1)))

	winner, err := selector.Pick(context.Background(), uuid.New(), domain.MethodRoundRobin, candidateList(agentA, agentB))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.AgentID != agentA {
		t.Fatalf("expected first candidate, got %s", winner.AgentID)
	}
}

func TestRoundRobinAdvancesAndWraps(t *testing.T) {
	agentA, agentB, agentC := uuid.New(), uuid.New(), uuid.New()
	history := &fakeHistory{}
	selector := NewSelector(history, rand.New(rand.NewSource(1)))
	tenantID := uuid.New()
	candidates := candidateList(agentA, agentB, agentC)

	history.last = &domain.AssignmentRecord{ToAgent: agentA}
	winner, err := selector.Pick(context.Background(), tenantID, domain.MethodRoundRobin, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.AgentID != agentB {
		t.Fatalf("expected agent after last assignee, got %s", winner.AgentID)
	}

	history.last = &domain.AssignmentRecord{ToAgent: agentC}
	winner, err = selector.Pick(context.Background(), tenantID, domain.MethodRoundRobin, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.AgentID != agentA {
		t.Fatalf("expected wrap to first candidate, got %s", winner.AgentID)
	}
}

func TestRoundRobinSelfHealsWhenLastAssigneeLeft(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()
	history := &fakeHistory{last: &domain.AssignmentRecord{ToAgent: uuid.New()}}
	selector := NewSelector(history, rand.New(rand.NewSource(1)))

	winner, err := selector.Pick(context.Background(), uuid.New(), domain.MethodRoundRobin, candidateList(agentA, agentB))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.AgentID != agentA {
		t.Fatalf("expected fallback to first candidate, got %s", winner.AgentID)
	}
}

func TestWeightedSelectionFollowsWeightRatio(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()
	selector := NewSelector(&fakeHistory{}, rand.New(rand.NewSource(42)))
	candidates := []domain.Candidate{
		{AgentID: agentA, PriorityWeight: 1},
		{AgentID: agentB, PriorityWeight: 3},
	}

	counts := map[uuid.UUID]int{}
	const draws = 4000
	for range draws {
		winner, err := selector.Pick(context.Background(), uuid.New(), domain.MethodWeighted, candidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[winner.AgentID]++
	}

	// Expect roughly 25%/75%; allow a generous band for the fixed seed.
	shareB := float64(counts[agentB]) / draws
	if shareB < 0.70 || shareB > 0.80 {
		t.Fatalf("expected agent with weight 3 near 75%% of draws, got %.2f", shareB)
	}
	if counts[agentA] == 0 {
		t.Fatal("expected the lighter agent to still win some draws")
	}
}

func TestWeightedFallsBackToUniformWithoutPositiveWeights(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()
	selector := NewSelector(&fakeHistory{}, rand.New(rand.NewSource(7)))
	candidates := []domain.Candidate{
		{AgentID: agentA, PriorityWeight: 0},
		{AgentID: agentB, PriorityWeight: 0},
	}

	seen := map[uuid.UUID]bool{}
	for range 100 {
		winner, err := selector.Pick(context.Background(), uuid.New(), domain.MethodWeighted, candidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen[winner.AgentID] = true
	}
	if !seen[agentA] || !seen[agentB] {
		t.Fatal("expected uniform fallback to reach both agents")
	}
}

func TestLoadBasedPicksMinimumLoadWithFirstOccurrenceTieBreak(t *testing.T) {
	agentA, agentB, agentC := uuid.New(), uuid.New(), uuid.New()
	selector := NewSelector(&fakeHistory{}, rand.New(rand.NewSource(1)))
	candidates := []domain.Candidate{
		{AgentID: agentA, CurrentLoad: 2},
		{AgentID: agentB, CurrentLoad: 0},
		{AgentID: agentC, CurrentLoad: 5},
	}

	winner, err := selector.Pick(context.Background(), uuid.New(), domain.MethodLoadBased, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.AgentID != agentB {
		t.Fatalf("expected least loaded agent, got %s", winner.AgentID)
	}

	tied := []domain.Candidate{
		{AgentID: agentA, CurrentLoad: 1},
		{AgentID: agentB, CurrentLoad: 1},
	}
	winner, err = selector.Pick(context.Background(), uuid.New(), domain.MethodLoadBased, tied)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.AgentID != agentA {
		t.Fatalf("expected tie broken by input order, got %s", winner.AgentID)
	}
}

func TestRandomSelectionStaysWithinCandidates(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()
	selector := NewSelector(&fakeHistory{}, rand.New(rand.NewSource(99)))
	candidates := candidateList(agentA, agentB)

	for range 50 {
		winner, err := selector.Pick(context.Background(), uuid.New(), domain.MethodRandom, candidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !containsAgent(candidates, winner.AgentID) {
			t.Fatalf("random pick returned unknown agent %s", winner.AgentID)
		}
	}
}

func TestPickWithEmptyCandidateListFails(t *testing.T) {
	selector := NewSelector(&fakeHistory{}, rand.New(rand.NewSource(1)))

	_, err := selector.Pick(context.Background(), uuid.New(), domain.MethodRoundRobin, nil)
	if err != ErrNoCandidates {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}
