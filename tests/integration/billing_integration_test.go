package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

// BillingFlowSuite drives an event from quote to settled invoice through
// the HTTP API.
type BillingFlowSuite struct {
	apiSuite
}

func TestBillingFlowSuite(t *testing.T) {
	suite.Run(t, new(BillingFlowSuite))
}

// draftQuote creates a client, an event and a draft quote with two lines
// worth 2000.00 at 10% tax.
func (s *BillingFlowSuite) draftQuote() (models.Event, models.EventQuote) {
	client := s.createClient("Jamie Smith", "jamie@example.com")
	event := s.createEvent(gin.H{"name": "Smith wedding", "client_id": client.ID})
	s.Equal(models.EventStatusInquiry, event.Status)

	var product models.Product
	s.call(http.MethodPost, "/api/v1/products",
		gin.H{"name": "Full day coverage", "base_price": "1500.00"}, http.StatusCreated, &product)

	var quote models.EventQuote
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/quotes", event.ID),
		gin.H{"title": "Wedding package", "tax_rate": "10"}, http.StatusCreated, &quote)
	s.Equal(1, quote.Version)
	s.Equal(models.QuoteStatusDraft, quote.Status)

	path := fmt.Sprintf("/api/v1/quotes/%d/line-items", quote.ID)
	s.call(http.MethodPost, path, gin.H{"product_id": product.ID}, http.StatusCreated, &quote)
	s.call(http.MethodPost, path,
		gin.H{"description": "Second shooter", "quantity": "2", "unit_price": "250"}, http.StatusCreated, &quote)
	s.Require().Len(quote.LineItems, 2)
	s.True(d("2000").Equal(quote.Subtotal), "subtotal %s", quote.Subtotal)
	s.True(d("2200").Equal(quote.TotalAmount), "total %s", quote.TotalAmount)
	return event, quote
}

func (s *BillingFlowSuite) TestQuoteToPaidInvoice() {
	event, quote := s.draftQuote()

	var discount models.DiscountCode
	s.call(http.MethodPost, "/api/v1/discount-codes",
		gin.H{"code": "spring10", "type": "PERCENTAGE", "value": "10"}, http.StatusCreated, &discount)
	s.Equal("SPRING10", discount.Code)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/discount", quote.ID),
		gin.H{"code": "spring10"}, http.StatusOK, &quote)
	s.True(d("200").Equal(quote.DiscountAmount), "discount %s", quote.DiscountAmount)
	s.True(d("180").Equal(quote.TaxAmount), "tax %s", quote.TaxAmount)
	s.True(d("1980").Equal(quote.TotalAmount), "total %s", quote.TotalAmount)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/send", quote.ID), nil, http.StatusOK, &quote)
	s.Equal(models.QuoteStatusSent, quote.Status)
	s.NotNil(quote.SentAt)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/accept", quote.ID), nil, http.StatusOK, &quote)
	s.Equal(models.QuoteStatusAccepted, quote.Status)

	confirmed := s.getEvent(event.ID)
	s.Equal(models.EventStatusConfirmed, confirmed.Status)
	s.True(d("1980").Equal(confirmed.TotalAmount))
	s.Equal(models.EventPaymentUnpaid, confirmed.PaymentStatus)

	var invoice models.Invoice
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/invoice", quote.ID), nil, http.StatusCreated, &invoice)
	s.Equal(models.InvoiceStatusDraft, invoice.Status)
	s.Require().Len(invoice.LineItems, 3, "quote lines plus the discount line")
	s.True(d("1980").Equal(invoice.TotalAmount), "invoice total %s", invoice.TotalAmount)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/issue", invoice.ID), nil, http.StatusOK, &invoice)
	s.Equal(models.InvoiceStatusIssued, invoice.Status)
	s.NotNil(invoice.IssueDate)
	s.NotNil(invoice.DueDate)

	paymentsPath := fmt.Sprintf("/api/v1/events/%d/payments", event.ID)
	var deposit models.Payment
	s.call(http.MethodPost, paymentsPath,
		gin.H{"invoice_id": invoice.ID, "amount": "500", "method": "card"}, http.StatusCreated, &deposit)
	s.Equal(models.PaymentStatusPending, deposit.Status)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/complete", deposit.ID), nil, http.StatusOK, &deposit)
	s.Equal(models.PaymentStatusCompleted, deposit.Status)
	s.Require().NotNil(deposit.ReceiptNumber)
	s.True(deposit.ReceiptSent)

	partial := s.getEvent(event.ID)
	s.Equal(models.EventPaymentPartiallyPaid, partial.PaymentStatus)
	s.True(d("500").Equal(partial.AmountPaid))

	var balance models.Payment
	s.call(http.MethodPost, paymentsPath,
		gin.H{"invoice_id": invoice.ID, "amount": "1480", "method": "bank transfer"}, http.StatusCreated, &balance)
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/complete", balance.ID),
		gin.H{"receipt_number": "RCPT-SMITH-2"}, http.StatusOK, &balance)
	s.Require().NotNil(balance.ReceiptNumber)
	s.Equal("RCPT-SMITH-2", *balance.ReceiptNumber)

	s.call(http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d", invoice.ID), nil, http.StatusOK, &invoice)
	s.Equal(models.InvoiceStatusPaid, invoice.Status)
	s.NotNil(invoice.PaidAt)

	paid := s.getEvent(event.ID)
	s.Equal(models.EventPaymentPaid, paid.PaymentStatus)
	s.True(d("1980").Equal(paid.AmountPaid))

	s.Equal([]string{
		services.TemplateQuoteSent,
		services.TemplateInvoiceIssued,
		services.TemplatePaymentReceipt,
		services.TemplatePaymentReceipt,
	}, s.email.SentTemplates())

	var timeline []models.EventTimeline
	s.call(http.MethodGet, fmt.Sprintf("/api/v1/events/%d/timeline", event.ID), nil, http.StatusOK, &timeline)
	kinds := make(map[string]int)
	for _, entry := range timeline {
		kinds[entry.Kind]++
	}
	s.Equal(1, kinds[models.TimelineQuoteSent])
	s.Equal(1, kinds[models.TimelineInvoiceIssued])
	s.Equal(2, kinds[models.TimelinePaymentReceived])
	s.Equal(1, kinds[models.TimelineInvoicePaid])
}

func (s *BillingFlowSuite) TestQuoteStatusRules() {
	_, quote := s.draftQuote()
	quotePath := fmt.Sprintf("/api/v1/quotes/%d", quote.ID)

	code := s.fail(http.MethodPost, quotePath+"/accept", nil, http.StatusBadRequest)
	s.Equal(services.CodeInvalidQuoteStatus, code, "a draft cannot be accepted")

	code = s.fail(http.MethodPost, quotePath+"/invoice", nil, http.StatusBadRequest)
	s.Equal(services.CodeInvalidQuoteStatus, code, "only accepted quotes are invoiced")

	s.call(http.MethodPost, quotePath+"/send", nil, http.StatusOK, &quote)

	code = s.fail(http.MethodPost, quotePath+"/line-items",
		gin.H{"description": "Album", "unit_price": "300"}, http.StatusBadRequest)
	s.Equal(services.CodeInvalidQuoteStatus, code, "sent quotes are read-only")

	s.call(http.MethodPost, quotePath+"/reject", gin.H{"reason": "Over budget"}, http.StatusOK, &quote)
	s.Equal(models.QuoteStatusRejected, quote.Status)
	s.Equal("Over budget", quote.RejectionReason)

	var next models.EventQuote
	s.call(http.MethodPost, quotePath+"/versions", nil, http.StatusCreated, &next)
	s.Equal(2, next.Version)
	s.Equal(models.QuoteStatusDraft, next.Status)
	s.Len(next.LineItems, 2, "a new version copies the line items")
}

func (s *BillingFlowSuite) TestPaymentValidation() {
	event, _ := s.draftQuote()
	paymentsPath := fmt.Sprintf("/api/v1/events/%d/payments", event.ID)

	code := s.fail(http.MethodPost, paymentsPath, gin.H{"amount": "0"}, http.StatusBadRequest)
	s.Equal(services.CodeValidation, code)

	code = s.fail(http.MethodPost, paymentsPath, gin.H{"amount": "10", "invoice_id": 9999}, http.StatusNotFound)
	s.Equal("INVOICE_NOT_FOUND", code)

	var payment models.Payment
	s.call(http.MethodPost, paymentsPath, gin.H{"amount": "100"}, http.StatusCreated, &payment)
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/complete", payment.ID), nil, http.StatusOK, &payment)

	code = s.fail(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/complete", payment.ID), nil, http.StatusBadRequest)
	s.Equal(services.CodePaymentAlreadyCompleted, code)

	code = s.fail(http.MethodGet, "/api/v1/payments/9999", nil, http.StatusNotFound)
	s.Equal("PAYMENT_NOT_FOUND", code)
}
