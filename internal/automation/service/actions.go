package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
	"crm_routing_backend/platform/logger"
)

// Channel is an outbound messaging channel bound to one lead's conversation.
type Channel interface {
	SendText(ctx context.Context, to, text string) error
	SetTyping(ctx context.Context, to string, seconds int) error
}

// ChannelResolver finds the connected channel for a lead. A nil Channel with
// a nil error means the lead has no connected channel instance; channel
// actions are then skipped rather than failed.
type ChannelResolver interface {
	ResolveForLead(ctx context.Context, tenantID, leadID uuid.UUID) (Channel, string, error)
}

// LeadWriter applies action side effects to a lead.
type LeadWriter interface {
	UpdateStage(ctx context.Context, tenantID, leadID, stageID uuid.UUID) error
	AssignAgent(ctx context.Context, tenantID, leadID, agentID uuid.UUID) error
	SetAgentLabel(ctx context.Context, tenantID, leadID uuid.UUID, label string) error
}

// UserDirectory resolves agent references to user IDs. A nil ID with a nil
// error means no user matched.
type UserDirectory interface {
	FindUserIDByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*uuid.UUID, error)
}

type actionHandler func(ctx context.Context, run *actionRun, action domain.Action) (string, error)

// Executor runs a rule's actions sequentially with per-action isolation: a
// failing action is recorded and the next one still runs.
type Executor struct {
	channels ChannelResolver
	leads    LeadWriter
	users    UserDirectory
	log      *logger.Logger
	handlers map[domain.ActionType]actionHandler
}

// NewExecutor builds an executor with every action variant registered.
func NewExecutor(channels ChannelResolver, leads LeadWriter, users UserDirectory, log *logger.Logger) *Executor {
	e := &Executor{channels: channels, leads: leads, users: users, log: log}
	e.handlers = map[domain.ActionType]actionHandler{
		domain.ActionSetTypingStatus: e.execSetTypingStatus,
		domain.ActionSendMessage:     e.execSendMessage,
		domain.ActionChangeStage:     e.execChangeStage,
		domain.ActionAssignAgent:     e.execAssignAgent,
	}
	return e
}

// Handles reports whether a handler is registered for the action type.
// Exposed for the registry completeness test.
func (e *Executor) Handles(t domain.ActionType) bool {
	_, ok := e.handlers[t]
	return ok
}

// actionRun carries per-run state shared by the handlers, in particular the
// lazily resolved channel so a rule with several channel actions only hits
// the resolver once.
type actionRun struct {
	event           TriggerEvent
	channel         Channel
	destination     string
	channelResolved bool
	channelErr      error
}

var errNoChannel = fmt.Errorf("lead has no connected channel")

func (r *actionRun) resolveChannel(ctx context.Context, resolver ChannelResolver) (Channel, string, error) {
	if !r.channelResolved {
		r.channelResolved = true
		if r.event.LeadID == nil {
			r.channelErr = errNoChannel
		} else {
			channel, destination, err := resolver.ResolveForLead(ctx, r.event.TenantID, *r.event.LeadID)
			if err != nil {
				r.channelErr = err
			} else if channel == nil {
				r.channelErr = errNoChannel
			} else {
				r.channel = channel
				r.destination = destination
			}
		}
	}
	return r.channel, r.destination, r.channelErr
}

// Execute runs every action in order and returns one outcome per action.
func (e *Executor) Execute(ctx context.Context, event TriggerEvent, actions []domain.Action) []domain.ActionOutcome {
	run := &actionRun{event: event}
	outcomes := make([]domain.ActionOutcome, 0, len(actions))

	for _, action := range actions {
		outcome := domain.ActionOutcome{Type: action.Type}

		handler, ok := e.handlers[action.Type]
		if !ok {
			outcome.Status = domain.ActionFailed
			outcome.Error = fmt.Sprintf("no handler registered for action type %q", action.Type)
			outcomes = append(outcomes, outcome)
			continue
		}

		result, err := handler(ctx, run, action)
		switch {
		case err == errNoChannel:
			outcome.Status = domain.ActionSkipped
			outcome.Result = "no connected channel"
		case err != nil:
			outcome.Status = domain.ActionFailed
			outcome.Error = err.Error()
			e.log.Error("automation action failed",
				"action", string(action.Type),
				"error", err.Error(),
			)
		default:
			outcome.Status = domain.ActionSucceeded
			outcome.Result = result
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (e *Executor) execSetTypingStatus(ctx context.Context, run *actionRun, action domain.Action) (string, error) {
	if !action.TypingEnabled() {
		return "typing disabled", nil
	}
	channel, destination, err := run.resolveChannel(ctx, e.channels)
	if err != nil {
		return "", err
	}
	if err := channel.SetTyping(ctx, destination, action.DurationSeconds); err != nil {
		return "", fmt.Errorf("failed to set typing status: %w", err)
	}
	return fmt.Sprintf("typing for %ds", action.DurationSeconds), nil
}

func (e *Executor) execSendMessage(ctx context.Context, run *actionRun, action domain.Action) (string, error) {
	channel, destination, err := run.resolveChannel(ctx, e.channels)
	if err != nil {
		return "", err
	}
	if err := channel.SendText(ctx, destination, action.Text); err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return "message sent", nil
}

func (e *Executor) execChangeStage(ctx context.Context, run *actionRun, action domain.Action) (string, error) {
	if run.event.LeadID == nil {
		return "", fmt.Errorf("change_stage requires a lead")
	}
	if err := e.leads.UpdateStage(ctx, run.event.TenantID, *run.event.LeadID, *action.StageID); err != nil {
		return "", fmt.Errorf("failed to change stage: %w", err)
	}
	return fmt.Sprintf("stage changed to %s", action.StageID), nil
}

func (e *Executor) execAssignAgent(ctx context.Context, run *actionRun, action domain.Action) (string, error) {
	if run.event.LeadID == nil {
		return "", fmt.Errorf("assign_agent requires a lead")
	}

	ref := strings.TrimSpace(action.AgentRef)
	if strings.Contains(ref, "@") {
		userID, err := e.users.FindUserIDByEmail(ctx, run.event.TenantID, ref)
		if err != nil {
			return "", fmt.Errorf("failed to look up agent by email: %w", err)
		}
		if userID != nil {
			if err := e.leads.AssignAgent(ctx, run.event.TenantID, *run.event.LeadID, *userID); err != nil {
				return "", fmt.Errorf("failed to assign agent: %w", err)
			}
			return fmt.Sprintf("assigned to %s", userID), nil
		}
		// No matching user, fall through and keep the reference as a label.
	}

	if err := e.leads.SetAgentLabel(ctx, run.event.TenantID, *run.event.LeadID, ref); err != nil {
		return "", fmt.Errorf("failed to set agent label: %w", err)
	}
	return fmt.Sprintf("labeled %q", ref), nil
}
