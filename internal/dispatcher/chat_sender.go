package dispatcher

import (
	"context"

	"github.com/blockedby/stockwatch-os/internal/chat"
	"github.com/blockedby/stockwatch-os/internal/models"
	"github.com/blockedby/stockwatch-os/internal/report"
)

// GatewaySender delivers the compact text report through the tenant's
// WhatsApp gateway.
type GatewaySender struct {
	client *chat.Client
}

// NewGatewaySender creates a chat sender over the shared gateway client.
func NewGatewaySender(client *chat.Client) *GatewaySender {
	return &GatewaySender{client: client}
}

// Send renders the text report and posts it to the tenant's gateway.
func (s *GatewaySender) Send(ctx context.Context, t models.Tenant, rep *models.ReportModel) error {
	return s.client.SendText(ctx, chat.SendRequest{
		GatewayURL: t.ChatGatewayURL,
		APIKey:     t.ChatAPIKey,
		Instance:   t.ChatInstance,
		Number:     t.ChatNumber,
		Text:       report.FormatText(rep),
	})
}
