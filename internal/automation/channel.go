package automation

import (
	"context"

	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/repository"
	"crm_routing_backend/internal/automation/service"
	"crm_routing_backend/internal/messaging"
)

// channelResolver binds the lead's stored channel instance to the messaging
// client so action handlers get a ready-to-use channel.
type channelResolver struct {
	repo   *repository.Repository
	client *messaging.Client
}

func (r *channelResolver) ResolveForLead(ctx context.Context, tenantID, leadID uuid.UUID) (service.Channel, string, error) {
	lead, err := r.repo.GetLeadChannel(ctx, tenantID, leadID)
	if err != nil {
		return nil, "", err
	}
	if lead == nil {
		return nil, "", nil
	}

	channel := &boundChannel{
		client:   r.client,
		instance: messaging.Instance{BaseURL: lead.BaseURL, APIKey: lead.APIKey},
	}
	return channel, lead.LeadPhone, nil
}

type boundChannel struct {
	client   *messaging.Client
	instance messaging.Instance
}

func (b *boundChannel) SendText(ctx context.Context, to, text string) error {
	return b.client.SendText(ctx, b.instance, to, text)
}

func (b *boundChannel) SetTyping(ctx context.Context, to string, seconds int) error {
	return b.client.SetTyping(ctx, b.instance, to, seconds)
}

var _ service.ChannelResolver = (*channelResolver)(nil)
