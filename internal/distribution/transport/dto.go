// Package transport defines the distribution module's request/response DTOs.
package transport

import (
	"time"

	"crm_routing_backend/internal/distribution/domain"

	"github.com/google/uuid"
)

// DistributeRequest is the invocation body sent by the CRM's ingestion layer
// when a lead needs routing.
type DistributeRequest struct {
	LeadID           uuid.UUID  `json:"lead_id" validate:"required"`
	OrganizationID   uuid.UUID  `json:"organization_id" validate:"required"`
	TriggerSource    string     `json:"trigger_source" validate:"required,oneof=new_lead whatsapp facebook webhook manual auto_redistribution"`
	IsRedistribution bool       `json:"is_redistribution"`
	FromUserID       *uuid.UUID `json:"from_user_id,omitempty"`
	TeamID           *uuid.UUID `json:"team_id,omitempty"`
}

// DistributeResponse reports the invocation outcome. No-op outcomes are
// successful and carry only a message.
type DistributeResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Agent       string `json:"agent,omitempty"`
	AgentUserID string `json:"agent_user_id,omitempty"`
	Method      string `json:"method,omitempty"`
}

// ConfigRequest creates or updates a distribution config.
type ConfigRequest struct {
	SourceType       string      `json:"source_type" validate:"required,oneof=whatsapp facebook webhook other all"`
	TeamID           *uuid.UUID  `json:"team_id,omitempty"`
	IsActive         bool        `json:"is_active"`
	Method           string      `json:"distribution_method" validate:"required,oneof=round_robin weighted load_based random"`
	Triggers         []string    `json:"triggers" validate:"required,min=1,dive,oneof=new_lead manual auto_redistribution"`
	EligibleAgentIDs []uuid.UUID `json:"eligible_agent_ids,omitempty"`
}

// ConfigResponse is the API view of a distribution config.
type ConfigResponse struct {
	ID               uuid.UUID   `json:"id"`
	SourceType       string      `json:"source_type"`
	TeamID           *uuid.UUID  `json:"team_id,omitempty"`
	IsActive         bool        `json:"is_active"`
	Method           string      `json:"distribution_method"`
	Triggers         []string    `json:"triggers"`
	EligibleAgentIDs []uuid.UUID `json:"eligible_agent_ids,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// ToConfigResponse maps a domain config to its API view.
func ToConfigResponse(config domain.DistributionConfig) ConfigResponse {
	return ConfigResponse{
		ID:               config.ID,
		SourceType:       string(config.SourceType),
		TeamID:           config.TeamID,
		IsActive:         config.IsActive,
		Method:           string(config.Method),
		Triggers:         config.Triggers,
		EligibleAgentIDs: config.EligibleAgentIDs,
		CreatedAt:        config.CreatedAt,
		UpdatedAt:        config.UpdatedAt,
	}
}

// AvailabilityRequest creates or updates an agent's availability settings.
type AvailabilityRequest struct {
	AgentID        uuid.UUID               `json:"agent_id" validate:"required"`
	IsActive       bool                    `json:"is_active"`
	MaxCapacity    int                     `json:"max_capacity" validate:"required,min=1"`
	PriorityWeight int                     `json:"priority_weight" validate:"required,min=1"`
	WorkingHours   map[string]DayHoursBody `json:"working_hours,omitempty" validate:"omitempty,dive,keys,oneof=monday tuesday wednesday thursday friday saturday sunday,endkeys"`
}

// DayHoursBody is one weekday's working window.
type DayHoursBody struct {
	Start string `json:"start" validate:"required,len=5"`
	End   string `json:"end" validate:"required,len=5"`
}

// PauseRequest pauses an agent, optionally until a point in time.
type PauseRequest struct {
	PauseUntil *time.Time `json:"pause_until,omitempty"`
}

// AvailabilityResponse is the API view of one agent's availability.
type AvailabilityResponse struct {
	AgentID        uuid.UUID               `json:"agent_id"`
	IsActive       bool                    `json:"is_active"`
	IsPaused       bool                    `json:"is_paused"`
	PauseUntil     *time.Time              `json:"pause_until,omitempty"`
	MaxCapacity    int                     `json:"max_capacity"`
	PriorityWeight int                     `json:"priority_weight"`
	WorkingHours   map[string]DayHoursBody `json:"working_hours,omitempty"`
	CurrentLoad    int                     `json:"current_load"`
}

// ToAvailabilityResponse maps a domain availability row to its API view.
func ToAvailabilityResponse(row domain.AgentAvailability) AvailabilityResponse {
	var hours map[string]DayHoursBody
	if len(row.WorkingHours) > 0 {
		hours = make(map[string]DayHoursBody, len(row.WorkingHours))
		for day, window := range row.WorkingHours {
			hours[day] = DayHoursBody{Start: window.Start, End: window.End}
		}
	}

	return AvailabilityResponse{
		AgentID:        row.AgentID,
		IsActive:       row.IsActive,
		IsPaused:       row.IsPaused,
		PauseUntil:     row.PauseUntil,
		MaxCapacity:    row.MaxCapacity,
		PriorityWeight: row.PriorityWeight,
		WorkingHours:   hours,
		CurrentLoad:    row.CurrentLoad,
	}
}

// HistoryEntryResponse is the API view of one assignment ledger record.
type HistoryEntryResponse struct {
	ID               uuid.UUID  `json:"id"`
	LeadID           uuid.UUID  `json:"lead_id"`
	FromAgent        *uuid.UUID `json:"from_agent,omitempty"`
	ToAgent          uuid.UUID  `json:"to_agent"`
	Method           string     `json:"method"`
	TriggerSource    string     `json:"trigger_source"`
	IsRedistribution bool       `json:"is_redistribution"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToHistoryEntryResponse maps a ledger record to its API view.
func ToHistoryEntryResponse(record domain.AssignmentRecord) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:               record.ID,
		LeadID:           record.LeadID,
		FromAgent:        record.FromAgent,
		ToAgent:          record.ToAgent,
		Method:           string(record.Method),
		TriggerSource:    string(record.TriggerSource),
		IsRedistribution: record.IsRedistribution,
		CreatedAt:        record.CreatedAt,
	}
}
