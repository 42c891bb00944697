package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentRecord is the immutable, append-only ledger entry written for
// every assignment. The most recent record for a tenant doubles as the
// round-robin cursor.
type AssignmentRecord struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	LeadID           uuid.UUID
	FromAgent        *uuid.UUID
	ToAgent          uuid.UUID
	Method           Method
	TriggerSource    TriggerSource
	IsRedistribution bool
	CreatedAt        time.Time
}

// DistributionConfig is the per-tenant routing configuration, optionally
// scoped to a source type (nil SourceType means the catch-all "all" config)
// and optionally to a team.
type DistributionConfig struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	SourceType       SourceType
	TeamID           *uuid.UUID
	IsActive         bool
	Method           Method
	Triggers         []string
	EligibleAgentIDs []uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AllowsTrigger reports whether the canonical trigger name is enabled.
func (c DistributionConfig) AllowsTrigger(canonical string) bool {
	for _, trigger := range c.Triggers {
		if trigger == canonical {
			return true
		}
	}
	return false
}
