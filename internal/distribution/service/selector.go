package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"crm_routing_backend/internal/distribution/domain"

	"github.com/google/uuid"
)

// ErrNoCandidates is returned when Pick is called with an empty list.
// Callers are expected to short-circuit before selection; this guards misuse.
var ErrNoCandidates = errors.New("no selectable agents")

// HistoryReader exposes the round-robin cursor: the tenant's most recent
// assignment. Injected so production can swap in an atomic counter and tests
// can use a fake.
type HistoryReader interface {
	LastAssignment(ctx context.Context, tenantID uuid.UUID) (*domain.AssignmentRecord, error)
}

// Selector picks exactly one agent from a non-empty candidate list.
//
// The round-robin variant is "soft": it depends only on list order and the
// last winner, not on a persisted index, so the cursor self-heals when agents
// churn. Concurrent invocations can read the same cursor and pick the same
// next agent; that read-then-decide race is accepted and not locked.
type Selector struct {
	history HistoryReader

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector. rng is injectable for deterministic tests;
// pass nil for a time-seeded source.
func NewSelector(history HistoryReader, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{history: history, rng: rng}
}

// Pick selects one candidate using the configured method.
func (s *Selector) Pick(ctx context.Context, tenantID uuid.UUID, method domain.Method, candidates []domain.Candidate) (domain.Candidate, error) {
	if len(candidates) == 0 {
		return domain.Candidate{}, ErrNoCandidates
	}

	switch method {
	case domain.MethodWeighted:
		return s.pickWeighted(candidates), nil
	case domain.MethodLoadBased:
		return pickLoadBased(candidates), nil
	case domain.MethodRandom:
		return candidates[s.intn(len(candidates))], nil
	default:
		return s.pickRoundRobin(ctx, tenantID, candidates)
	}
}

// pickRoundRobin picks the agent after the last assignee in list order,
// wrapping to index 0. No prior history, or a last assignee that is no longer
// in the candidate list, both fall back to the first candidate.
func (s *Selector) pickRoundRobin(ctx context.Context, tenantID uuid.UUID, candidates []domain.Candidate) (domain.Candidate, error) {
	last, err := s.history.LastAssignment(ctx, tenantID)
	if err != nil {
		return domain.Candidate{}, err
	}
	if last == nil {
		return candidates[0], nil
	}

	for i, candidate := range candidates {
		if candidate.AgentID == last.ToAgent {
			return candidates[(i+1)%len(candidates)], nil
		}
	}

	return candidates[0], nil
}

// pickWeighted draws a uniform value in [0, total weight) and walks the list
// subtracting each candidate's weight. Strict subtraction makes ties impossible.
func (s *Selector) pickWeighted(candidates []domain.Candidate) domain.Candidate {
	total := 0
	for _, candidate := range candidates {
		if candidate.PriorityWeight > 0 {
			total += candidate.PriorityWeight
		}
	}
	if total <= 0 {
		return candidates[s.intn(len(candidates))]
	}

	draw := s.intn(total)
	for _, candidate := range candidates {
		if candidate.PriorityWeight <= 0 {
			continue
		}
		draw -= candidate.PriorityWeight
		if draw < 0 {
			return candidate
		}
	}

	// Unreachable while total equals the sum of positive weights.
	return candidates[len(candidates)-1]
}

// pickLoadBased picks the strictly minimal current load, ties broken by first
// occurrence in input order.
func pickLoadBased(candidates []domain.Candidate) domain.Candidate {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.CurrentLoad < best.CurrentLoad {
			best = candidate
		}
	}
	return best
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
