package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"crm_routing_backend/internal/distribution/domain"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore implements every port the orchestrator needs, backed by maps.
type fakeStore struct {
	leads        map[uuid.UUID]*LeadRouting
	configs      map[domain.SourceType]*domain.DistributionConfig
	teamMembers  map[uuid.UUID][]uuid.UUID
	availability []domain.AgentAvailability
	names        map[uuid.UUID]string

	assignments []domain.AssignmentRecord
}

func (f *fakeStore) GetLeadRouting(_ context.Context, leadID, _ uuid.UUID) (*LeadRouting, error) {
	return f.leads[leadID], nil
}

func (f *fakeStore) ResolveActive(_ context.Context, _ uuid.UUID, source domain.SourceType) (*domain.DistributionConfig, error) {
	return f.configs[source], nil
}

func (f *fakeStore) ListTeamMembers(_ context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	return f.teamMembers[teamID], nil
}

func (f *fakeStore) ListAvailability(_ context.Context, _ uuid.UUID, allowList []uuid.UUID) ([]domain.AgentAvailability, error) {
	if allowList == nil {
		return f.availability, nil
	}
	allowed := make(map[uuid.UUID]struct{}, len(allowList))
	for _, id := range allowList {
		allowed[id] = struct{}{}
	}
	var rows []domain.AgentAvailability
	for _, row := range f.availability {
		if _, ok := allowed[row.AgentID]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeStore) Assign(_ context.Context, record domain.AssignmentRecord) error {
	f.assignments = append(f.assignments, record)
	return nil
}

// LastAssignment serves the selector's round-robin cursor from the recorded
// assignments, like the real ledger does.
func (f *fakeStore) LastAssignment(_ context.Context, _ uuid.UUID) (*domain.AssignmentRecord, error) {
	if len(f.assignments) == 0 {
		return nil, nil
	}
	last := f.assignments[len(f.assignments)-1]
	return &last, nil
}

func (f *fakeStore) GetUserName(_ context.Context, userID uuid.UUID) (string, error) {
	return f.names[userID], nil
}

func newTestService(store *fakeStore) *Service {
	now := func() time.Time { return time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC) }
	resolver := NewResolver(store, now)
	selector := NewSelector(store, rand.New(rand.NewSource(1)))
	log := logger.New("development")
	return New(store, store, store, resolver, selector, store, store, nil, log)
}

func availableAgent(id uuid.UUID) domain.AgentAvailability {
	return domain.AgentAvailability{
		AgentID:        id,
		IsActive:       true,
		MaxCapacity:    10,
		PriorityWeight: 1,
	}
}

func TestDistributeRoundRobinCyclesThroughAgents(t *testing.T) {
	tenantID := uuid.New()
	agentA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	agentB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	store := &fakeStore{
		leads:   map[uuid.UUID]*LeadRouting{},
		configs: map[domain.SourceType]*domain.DistributionConfig{},
		names:   map[uuid.UUID]string{agentA: "Ana", agentB: "Bruno"},
		availability: []domain.AgentAvailability{
			availableAgent(agentA),
			availableAgent(agentB),
		},
	}
	store.configs[domain.SourceFacebook] = &domain.DistributionConfig{
		ID:         uuid.New(),
		TenantID:   tenantID,
		SourceType: domain.SourceFacebook,
		IsActive:   true,
		Method:     domain.MethodRoundRobin,
		Triggers:   []string{"new_lead"},
	}

	svc := newTestService(store)

	want := []uuid.UUID{agentA, agentB, agentA}
	for i, expected := range want {
		leadID := uuid.New()
		store.leads[leadID] = &LeadRouting{ID: leadID, TenantID: tenantID, Source: "facebook_ads"}

		result, err := svc.Distribute(context.Background(), DistributeInput{
			LeadID:        leadID,
			TenantID:      tenantID,
			TriggerSource: domain.TriggerFacebook,
		})
		if err != nil {
			t.Fatalf("distribute %d: unexpected error: %v", i, err)
		}
		if result.Outcome != OutcomeAssigned {
			t.Fatalf("distribute %d: expected assignment, got %s (%s)", i, result.Outcome, result.Message)
		}
		if result.AgentID != expected {
			t.Fatalf("distribute %d: expected agent %s, got %s", i, expected, result.AgentID)
		}
	}

	if len(store.assignments) != 3 {
		t.Fatalf("expected 3 ledger records, got %d", len(store.assignments))
	}
	if store.assignments[0].TriggerSource != domain.TriggerFacebook {
		t.Fatalf("ledger must keep the original trigger source, got %s", store.assignments[0].TriggerSource)
	}
}

func TestDistributeFallsBackToCatchAllConfig(t *testing.T) {
	tenantID := uuid.New()
	agent := uuid.New()
	leadID := uuid.New()

	store := &fakeStore{
		leads: map[uuid.UUID]*LeadRouting{
			leadID: {ID: leadID, TenantID: tenantID, Source: "indicacao"},
		},
		configs: map[domain.SourceType]*domain.DistributionConfig{
			domain.SourceAll: {
				TenantID:   tenantID,
				SourceType: domain.SourceAll,
				IsActive:   true,
				Method:     domain.MethodRoundRobin,
				Triggers:   []string{"new_lead"},
			},
		},
		names:        map[uuid.UUID]string{agent: "Carla"},
		availability: []domain.AgentAvailability{availableAgent(agent)},
	}

	svc := newTestService(store)

	result, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        leadID,
		TenantID:      tenantID,
		TriggerSource: domain.TriggerNewLead,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeAssigned {
		t.Fatalf("expected catch-all assignment, got %s", result.Outcome)
	}
	if result.AgentName != "Carla" {
		t.Fatalf("expected resolved agent name, got %q", result.AgentName)
	}
}

func TestDistributeWithoutConfigIsSuccessfulNoop(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()

	store := &fakeStore{
		leads: map[uuid.UUID]*LeadRouting{
			leadID: {ID: leadID, TenantID: tenantID, Source: "whatsapp"},
		},
		configs: map[domain.SourceType]*domain.DistributionConfig{},
	}

	svc := newTestService(store)

	result, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        leadID,
		TenantID:      tenantID,
		TriggerSource: domain.TriggerWhatsApp,
	})
	if err != nil {
		t.Fatalf("expected no error for missing config, got %v", err)
	}
	if result.Outcome != OutcomeNotConfigured {
		t.Fatalf("expected not_configured, got %s", result.Outcome)
	}
	if len(store.assignments) != 0 {
		t.Fatal("no-op outcomes must not write ledger records")
	}
}

func TestDistributeHonorsDisabledTrigger(t *testing.T) {
	tenantID := uuid.New()
	agent := uuid.New()
	leadID := uuid.New()

	store := &fakeStore{
		leads: map[uuid.UUID]*LeadRouting{
			leadID: {ID: leadID, TenantID: tenantID, Source: "whatsapp"},
		},
		configs: map[domain.SourceType]*domain.DistributionConfig{
			domain.SourceWhatsApp: {
				TenantID:   tenantID,
				SourceType: domain.SourceWhatsApp,
				IsActive:   true,
				Method:     domain.MethodRoundRobin,
				Triggers:   []string{"new_lead"},
			},
		},
		availability: []domain.AgentAvailability{availableAgent(agent)},
	}

	svc := newTestService(store)

	result, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        leadID,
		TenantID:      tenantID,
		TriggerSource: domain.TriggerManual,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeTriggerDisabled {
		t.Fatalf("expected trigger_disabled, got %s", result.Outcome)
	}
}

func TestDistributeTeamScopeIntersectsEligibleAgents(t *testing.T) {
	tenantID := uuid.New()
	teamID := uuid.New()
	inTeamEligible := uuid.New()
	inTeamNotEligible := uuid.New()
	leadID := uuid.New()

	store := &fakeStore{
		leads: map[uuid.UUID]*LeadRouting{
			leadID: {ID: leadID, TenantID: tenantID, Source: "webhook"},
		},
		configs: map[domain.SourceType]*domain.DistributionConfig{
			domain.SourceWebhook: {
				TenantID:         tenantID,
				SourceType:       domain.SourceWebhook,
				TeamID:           &teamID,
				IsActive:         true,
				Method:           domain.MethodRoundRobin,
				Triggers:         []string{"new_lead"},
				EligibleAgentIDs: []uuid.UUID{inTeamEligible},
			},
		},
		teamMembers: map[uuid.UUID][]uuid.UUID{
			teamID: {inTeamEligible, inTeamNotEligible},
		},
		names: map[uuid.UUID]string{inTeamEligible: "Duda"},
		availability: []domain.AgentAvailability{
			availableAgent(inTeamEligible),
			availableAgent(inTeamNotEligible),
		},
	}

	svc := newTestService(store)

	result, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        leadID,
		TenantID:      tenantID,
		TriggerSource: domain.TriggerWebhook,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AgentID != inTeamEligible {
		t.Fatalf("expected the intersected agent, got %s", result.AgentID)
	}
}

func TestDistributeEmptyTeamIsSuccessfulNoop(t *testing.T) {
	tenantID := uuid.New()
	teamID := uuid.New()
	leadID := uuid.New()

	store := &fakeStore{
		leads: map[uuid.UUID]*LeadRouting{
			leadID: {ID: leadID, TenantID: tenantID, Source: "webhook"},
		},
		configs: map[domain.SourceType]*domain.DistributionConfig{
			domain.SourceWebhook: {
				TenantID:   tenantID,
				SourceType: domain.SourceWebhook,
				TeamID:     &teamID,
				IsActive:   true,
				Method:     domain.MethodRoundRobin,
				Triggers:   []string{"new_lead"},
			},
		},
		teamMembers: map[uuid.UUID][]uuid.UUID{teamID: {}},
	}

	svc := newTestService(store)

	result, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        leadID,
		TenantID:      tenantID,
		TriggerSource: domain.TriggerWebhook,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeTeamEmpty {
		t.Fatalf("expected team_has_no_members, got %s", result.Outcome)
	}
}

func TestDistributeWithNoAvailableAgentsIsSuccessfulNoop(t *testing.T) {
	tenantID := uuid.New()
	agent := uuid.New()
	leadID := uuid.New()

	overloaded := availableAgent(agent)
	overloaded.CurrentLoad = 10

	store := &fakeStore{
		leads: map[uuid.UUID]*LeadRouting{
			leadID: {ID: leadID, TenantID: tenantID, Source: "whatsapp"},
		},
		configs: map[domain.SourceType]*domain.DistributionConfig{
			domain.SourceWhatsApp: {
				TenantID:   tenantID,
				SourceType: domain.SourceWhatsApp,
				IsActive:   true,
				Method:     domain.MethodRoundRobin,
				Triggers:   []string{"new_lead"},
			},
		},
		availability: []domain.AgentAvailability{overloaded},
	}

	svc := newTestService(store)

	result, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        leadID,
		TenantID:      tenantID,
		TriggerSource: domain.TriggerWhatsApp,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNoAgents {
		t.Fatalf("expected no_available_agents, got %s", result.Outcome)
	}
}

func TestDistributeRejectsUnknownTriggerSource(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Distribute(context.Background(), DistributeInput{
		LeadID:        uuid.New(),
		TenantID:      uuid.New(),
		TriggerSource: domain.TriggerSource("bulk_import"),
	})
	if err == nil {
		t.Fatal("expected an error for an unknown trigger source")
	}
}
