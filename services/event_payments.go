package services

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// refreshEventPaymentStatus recomputes the amount paid and the aggregate
// payment status of an event and returns the updated event.
//
// The amount due is the total of issued and paid invoices when the event has
// any, otherwise the event total. The amount paid is the net of completed
// payments, but never less than the total of invoices marked paid.
func refreshEventPaymentStatus(tx *gorm.DB, eventID uint) (*models.Event, error) {
	event, err := lockEvent(tx, eventID)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := tx.Preload("Refunds").
		Where("event_id = ? AND status = ?", eventID, models.PaymentStatusCompleted).
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to load payments for event %d: %w", eventID, err)
	}
	paid := decimal.Zero
	for i := range payments {
		paid = paid.Add(payments[i].Amount).Sub(payments[i].RefundedAmount())
	}

	var invoices []models.Invoice
	if err := tx.Where("event_id = ? AND status IN ?", eventID,
		[]models.InvoiceStatus{models.InvoiceStatusIssued, models.InvoiceStatusPaid}).
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to load invoices for event %d: %w", eventID, err)
	}

	due := event.TotalAmount
	if len(invoices) > 0 {
		due = decimal.Zero
		settled := decimal.Zero
		for _, inv := range invoices {
			due = due.Add(inv.TotalAmount)
			if inv.Status == models.InvoiceStatusPaid {
				settled = settled.Add(inv.TotalAmount)
			}
		}
		paid = decimal.Max(paid, settled)
	}

	paid = models.Money(paid)
	status := models.PaymentStatusFor(models.Money(due), paid)
	if err := tx.Model(event).Updates(map[string]interface{}{
		"amount_paid":    paid,
		"payment_status": status,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment status of event %d: %w", eventID, err)
	}
	event.AmountPaid = paid
	event.PaymentStatus = status
	return event, nil
}
