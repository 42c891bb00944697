package service

import (
	"context"
	"time"

	"crm_routing_backend/internal/distribution/domain"

	"github.com/google/uuid"
)

// AvailabilityStore loads availability rows with their current open-lead load.
// Rows must be ordered by agent id ascending so selection is deterministic.
type AvailabilityStore interface {
	ListAvailability(ctx context.Context, tenantID uuid.UUID, allowList []uuid.UUID) ([]domain.AgentAvailability, error)
}

// Resolver filters a tenant's agents down to those that can receive a lead
// right now. It is read-only; an empty result is a valid outcome.
type Resolver struct {
	store AvailabilityStore
	now   func() time.Time
}

// NewResolver creates an availability resolver. now is injectable for tests;
// pass nil for wall-clock time.
func NewResolver(store AvailabilityStore, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, now: now}
}

// Resolve returns the candidates available at the current time, preserving the
// store's agent-id ordering. allowList restricts the candidate set when non-nil.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, allowList []uuid.UUID) ([]domain.Candidate, error) {
	rows, err := r.store.ListAvailability(ctx, tenantID, allowList)
	if err != nil {
		return nil, err
	}

	return FilterAvailable(rows, r.now()), nil
}

// FilterAvailable applies pause, pause-expiry, working-hours and capacity
// checks at the given instant. Split out as a pure function for tests.
func FilterAvailable(rows []domain.AgentAvailability, now time.Time) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		if !row.AvailableAt(now) {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			AgentID:        row.AgentID,
			PriorityWeight: row.PriorityWeight,
			CurrentLoad:    row.CurrentLoad,
			MaxCapacity:    row.MaxCapacity,
		})
	}
	return candidates
}
