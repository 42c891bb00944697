// Package service implements lead distribution: availability resolution,
// agent selection and the orchestrator that ties them to the assignment ledger.
//
// Known concurrency gap: the round-robin cursor read and the capacity check
// are both read-then-decide without a transactional guard. Two simultaneous
// invocations for the same tenant can pick the same agent or transiently
// exceed capacity. The assignment write itself is atomic.
package service

import (
	"context"
	"fmt"

	"crm_routing_backend/internal/distribution/domain"
	"crm_routing_backend/internal/events"
	"crm_routing_backend/platform/apperr"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome classifies a distribution invocation result. All values except
// OutcomeAssigned are successful no-ops, never errors.
type Outcome string

const (
	OutcomeAssigned        Outcome = "assigned"
	OutcomeNotConfigured   Outcome = "not_configured"
	OutcomeTriggerDisabled Outcome = "trigger_disabled"
	OutcomeTeamEmpty       Outcome = "team_has_no_members"
	OutcomeNoAgents        Outcome = "no_available_agents"
)

// LeadRouting is the minimal lead projection the orchestrator reads.
type LeadRouting struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Source           string
	ResponsibleAgent *uuid.UUID
}

// LeadReader loads the routing projection of a lead.
type LeadReader interface {
	GetLeadRouting(ctx context.Context, leadID, tenantID uuid.UUID) (*LeadRouting, error)
}

// ConfigStore resolves the active distribution config for a source type.
// It returns (nil, nil) when no active config matches.
type ConfigStore interface {
	ResolveActive(ctx context.Context, tenantID uuid.UUID, source domain.SourceType) (*domain.DistributionConfig, error)
}

// TeamReader lists the members of a team.
type TeamReader interface {
	ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
}

// AssignmentLedger atomically persists the chosen agent on the lead and
// appends the immutable history record.
type AssignmentLedger interface {
	Assign(ctx context.Context, record domain.AssignmentRecord) error
}

// UserReader resolves agent display names for responses.
type UserReader interface {
	GetUserName(ctx context.Context, userID uuid.UUID) (string, error)
}

// DistributeInput is one distribution invocation.
type DistributeInput struct {
	LeadID           uuid.UUID
	TenantID         uuid.UUID
	TriggerSource    domain.TriggerSource
	IsRedistribution bool
	FromAgent        *uuid.UUID
	// TeamID overrides the config's team scope when set.
	TeamID *uuid.UUID
}

// DistributeResult reports what happened. No-op outcomes carry a message and
// no agent.
type DistributeResult struct {
	Outcome   Outcome
	Message   string
	AgentID   uuid.UUID
	AgentName string
	Method    domain.Method
}

// Service is the distribution orchestrator.
type Service struct {
	leads    LeadReader
	configs  ConfigStore
	teams    TeamReader
	resolver *Resolver
	selector *Selector
	ledger   AssignmentLedger
	users    UserReader
	bus      events.Bus
	log      *logger.Logger
}

// New creates the distribution orchestrator.
func New(leads LeadReader, configs ConfigStore, teams TeamReader, resolver *Resolver, selector *Selector, ledger AssignmentLedger, users UserReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:    leads,
		configs:  configs,
		teams:    teams,
		resolver: resolver,
		selector: selector,
		ledger:   ledger,
		users:    users,
		bus:      bus,
		log:      log,
	}
}

// Distribute routes one lead to exactly one agent, or terminates with an
// explicit no-op outcome. Only infrastructure failures return an error.
func (s *Service) Distribute(ctx context.Context, input DistributeInput) (DistributeResult, error) {
	if !input.TriggerSource.Valid() {
		return DistributeResult{}, apperr.BadRequest(fmt.Sprintf("unknown trigger source %q", input.TriggerSource))
	}

	lead, err := s.leads.GetLeadRouting(ctx, input.LeadID, input.TenantID)
	if err != nil {
		return DistributeResult{}, err
	}

	sourceType := domain.ClassifySource(lead.Source)

	config, err := s.resolveConfig(ctx, input.TenantID, sourceType)
	if err != nil {
		return DistributeResult{}, err
	}
	if config == nil {
		return noop(OutcomeNotConfigured, "no active distribution config for source "+string(sourceType)), nil
	}

	canonical := input.TriggerSource.Canonical()
	if !config.AllowsTrigger(canonical) {
		return noop(OutcomeTriggerDisabled, "trigger "+canonical+" is disabled for this config"), nil
	}

	allowList, empty, err := s.resolveAllowList(ctx, config, input.TeamID)
	if err != nil {
		return DistributeResult{}, err
	}
	if empty {
		return noop(OutcomeTeamEmpty, "team has no members"), nil
	}

	candidates, err := s.resolver.Resolve(ctx, input.TenantID, allowList)
	if err != nil {
		return DistributeResult{}, err
	}
	if len(candidates) == 0 {
		return noop(OutcomeNoAgents, "no available agents"), nil
	}

	winner, err := s.selector.Pick(ctx, input.TenantID, config.Method, candidates)
	if err != nil {
		return DistributeResult{}, err
	}

	fromAgent := input.FromAgent
	if fromAgent == nil && input.IsRedistribution {
		fromAgent = lead.ResponsibleAgent
	}

	record := domain.AssignmentRecord{
		ID:               uuid.New(),
		TenantID:         input.TenantID,
		LeadID:           input.LeadID,
		FromAgent:        fromAgent,
		ToAgent:          winner.AgentID,
		Method:           config.Method,
		TriggerSource:    input.TriggerSource,
		IsRedistribution: input.IsRedistribution,
	}
	if err := s.ledger.Assign(ctx, record); err != nil {
		return DistributeResult{}, err
	}

	s.publishAssignment(ctx, record)
	s.log.LeadAssigned(input.LeadID.String(), winner.AgentID.String(), string(config.Method), string(input.TriggerSource))

	name, err := s.users.GetUserName(ctx, winner.AgentID)
	if err != nil {
		// The assignment is durable; a missing display name must not fail it.
		name = winner.AgentID.String()
	}

	return DistributeResult{
		Outcome:   OutcomeAssigned,
		AgentID:   winner.AgentID,
		AgentName: name,
		Method:    config.Method,
	}, nil
}

// resolveConfig loads the active config for the source type, falling back to
// the tenant's catch-all config.
func (s *Service) resolveConfig(ctx context.Context, tenantID uuid.UUID, source domain.SourceType) (*domain.DistributionConfig, error) {
	config, err := s.configs.ResolveActive(ctx, tenantID, source)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config, err = s.configs.ResolveActive(ctx, tenantID, domain.SourceAll)
		if err != nil {
			return nil, err
		}
	}
	if config != nil && !config.IsActive {
		return nil, nil
	}
	return config, nil
}

// resolveAllowList intersects team membership with the config's eligible-agent
// allow-list. The boolean reports a team scope that resolved to zero agents.
func (s *Service) resolveAllowList(ctx context.Context, config *domain.DistributionConfig, teamOverride *uuid.UUID) ([]uuid.UUID, bool, error) {
	teamID := config.TeamID
	if teamOverride != nil {
		teamID = teamOverride
	}

	if teamID == nil {
		return config.EligibleAgentIDs, false, nil
	}

	members, err := s.teams.ListTeamMembers(ctx, *teamID)
	if err != nil {
		return nil, false, err
	}

	allowList := intersect(members, config.EligibleAgentIDs)
	return allowList, len(allowList) == 0, nil
}

func (s *Service) publishAssignment(ctx context.Context, record domain.AssignmentRecord) {
	if s.bus == nil {
		return
	}

	if record.IsRedistribution {
		s.bus.Publish(ctx, events.LeadRedistributed{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    record.LeadID,
			TenantID:  record.TenantID,
			FromAgent: record.FromAgent,
			ToAgent:   record.ToAgent,
			Method:    string(record.Method),
		})
		return
	}

	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        record.LeadID,
		TenantID:      record.TenantID,
		AgentID:       record.ToAgent,
		PreviousAgent: record.FromAgent,
		Method:        string(record.Method),
		TriggerSource: string(record.TriggerSource),
	})
}

func noop(outcome Outcome, message string) DistributeResult {
	return DistributeResult{Outcome: outcome, Message: message}
}

// intersect keeps members that appear in the allow-list. A nil allow-list
// means no restriction, so the members pass through unchanged.
func intersect(members, allowList []uuid.UUID) []uuid.UUID {
	if allowList == nil {
		return members
	}

	allowed := make(map[uuid.UUID]struct{}, len(allowList))
	for _, id := range allowList {
		allowed[id] = struct{}{}
	}

	result := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if _, ok := allowed[member]; ok {
			result = append(result, member)
		}
	}
	return result
}
