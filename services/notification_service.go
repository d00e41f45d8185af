package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// Email templates.
const (
	TemplateQuoteSent        = "quote_sent"
	TemplateInvoiceIssued    = "invoice_issued"
	TemplatePaymentReceipt   = "payment_receipt"
	TemplateContractSent     = "contract_sent"
	TemplateContractSigned   = "contract_signed"
	TemplateClientInvitation = "client_invitation"
)

// Message is one outbound notification.
type Message struct {
	EventID   *uint
	Kind      string
	Template  string
	Recipient string
	Context   map[string]interface{}
}

// Notifier records notifications and hands them to the email provider.
// Delivery failures are logged and stored on the row, never returned.
type Notifier struct {
	email EmailSender
	log   zerolog.Logger
}

func NewNotifier(email EmailSender, log zerolog.Logger) *Notifier {
	return &Notifier{email: email, log: log}
}

// Notify writes a Notification row inside tx and sends the email. The
// returned bool reports delivery; the error is only set when the row could
// not be written.
func (n *Notifier) Notify(ctx context.Context, tx *gorm.DB, msg Message) (bool, error) {
	delivered := false
	if msg.Recipient == "" {
		n.log.Warn().Str("kind", msg.Kind).Msg("notification: no recipient, skipping email")
	} else {
		delivered = n.email.Send(ctx, msg.Template, msg.Recipient, msg.Context)
		if !delivered {
			n.log.Warn().
				Str("kind", msg.Kind).
				Str("template", msg.Template).
				Str("recipient", msg.Recipient).
				Msg("notification: email not delivered (non-fatal)")
		}
	}

	row := models.Notification{
		EventID:   msg.EventID,
		Kind:      msg.Kind,
		Template:  msg.Template,
		Recipient: msg.Recipient,
		Context:   datatypes.JSONMap(msg.Context),
		Delivered: delivered,
	}
	if err := tx.Create(&row).Error; err != nil {
		return delivered, fmt.Errorf("failed to record notification: %w", err)
	}
	return delivered, nil
}

// SendDirect sends without recording a row. Used where the caller must
// react to a delivery failure itself.
func (n *Notifier) SendDirect(ctx context.Context, template, recipient string, data map[string]interface{}) bool {
	return n.email.Send(ctx, template, recipient, data)
}

// clientEmail looks up the email address of the client behind an event.
func clientEmail(tx *gorm.DB, event *models.Event) string {
	if event == nil || event.ClientID == nil {
		return ""
	}
	var client models.Client
	if err := tx.Select("email").First(&client, *event.ClientID).Error; err != nil {
		return ""
	}
	return client.Email
}
