package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crm_routing_backend/internal/events"
	"crm_routing_backend/platform/logger"
)

// Notifier subscribes to assignment events and emails the winning agent.
// Delivery is best effort; a failed email never affects the assignment.
type Notifier struct {
	pool   *pgxpool.Pool
	sender Sender
	log    *logger.Logger
}

// NewNotifier creates the assignment notifier.
func NewNotifier(pool *pgxpool.Pool, sender Sender, log *logger.Logger) *Notifier {
	return &Notifier{pool: pool, sender: sender, log: log}
}

// RegisterHandlers subscribes to the distribution events.
func (n *Notifier) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), n)
	bus.Subscribe(events.LeadRedistributed{}.EventName(), n)
	n.log.Info("email notifier registered event handlers")
}

// Handle routes events to the matching notification.
func (n *Notifier) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		return n.notify(ctx, e.TenantID, e.LeadID, e.AgentID, e.Method, false)
	case events.LeadRedistributed:
		return n.notify(ctx, e.TenantID, e.LeadID, e.ToAgent, e.Method, true)
	default:
		return nil
	}
}

func (n *Notifier) notify(ctx context.Context, tenantID, leadID, agentID uuid.UUID, method string, reassign bool) error {
	var agentName, agentEmail, leadName string
	err := n.pool.QueryRow(ctx,
		`SELECT u.name, u.email, l.name FROM users u, leads l
		WHERE u.id = $1 AND l.id = $2 AND l.organization_id = $3`,
		agentID, leadID, tenantID,
	).Scan(&agentName, &agentEmail, &leadName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load assignment notification data: %w", err)
	}
	if agentEmail == "" {
		return nil
	}

	err = n.sender.SendAssignmentEmail(ctx, agentEmail, AssignmentEmailData{
		AgentName: agentName,
		LeadName:  leadName,
		Method:    method,
		Reassign:  reassign,
	})
	if err != nil {
		n.log.Error("assignment email failed",
			"agent_id", agentID.String(),
			"lead_id", leadID.String(),
			"error", err.Error(),
		)
		return err
	}

	n.log.Info("assignment email sent", "agent_id", agentID.String(), "lead_id", leadID.String())
	return nil
}

var _ events.Handler = (*Notifier)(nil)
