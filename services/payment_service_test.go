package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

type paymentFixture struct {
	db        *gorm.DB
	email     *MockEmailSender
	gateway   *MockPaymentGateway
	invoices  *InvoiceService
	workflows *WorkflowService
	payments  *PaymentService
	plans     *PaymentPlanService
	event     *models.Event
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	db := setupTestDB(t)
	email := NewMockEmailSender()
	notifier := NewNotifier(email, testLog)
	gateway := NewMockPaymentGateway()
	invoices := NewInvoiceService(db, notifier, d("0"), testLog)
	workflows := NewWorkflowService(db, NewSequencer(DefaultReorderMargin), testLog)

	client := models.Client{Name: "Jamie Smith", Email: "jamie@example.com"}
	require.NoError(t, db.Create(&client).Error)
	event := models.Event{
		Name:          "Smith wedding",
		ClientID:      &client.ID,
		Status:        models.EventStatusConfirmed,
		PaymentStatus: models.EventPaymentUnpaid,
		TotalAmount:   d("1000.00"),
	}
	require.NoError(t, db.Create(&event).Error)

	return &paymentFixture{
		db:        db,
		email:     email,
		gateway:   gateway,
		invoices:  invoices,
		workflows: workflows,
		payments:  NewPaymentService(db, notifier, invoices, workflows, gateway, testLog),
		plans:     NewPaymentPlanService(db, testLog),
		event:     &event,
	}
}

func (f *paymentFixture) pending(t *testing.T, amount string) *models.Payment {
	t.Helper()
	p, err := f.payments.CreatePayment(testCtx, CreatePaymentRequest{EventID: f.event.ID, Amount: d(amount)}, testActor)
	require.NoError(t, err)
	return p
}

func (f *paymentFixture) reloadEvent(t *testing.T) models.Event {
	t.Helper()
	var event models.Event
	require.NoError(t, f.db.First(&event, f.event.ID).Error)
	return event
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := f.payments.CreatePayment(testCtx, CreatePaymentRequest{EventID: f.event.ID, Amount: d("0")}, testActor)
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = f.payments.CreatePayment(testCtx, CreatePaymentRequest{EventID: 9999, Amount: d("10")}, testActor)
	requireKind(t, err, KindNotFound, "EVENT_NOT_FOUND")

	missing := uint(9999)
	_, err = f.payments.CreatePayment(testCtx, CreatePaymentRequest{EventID: f.event.ID, Amount: d("10"), InvoiceID: &missing}, testActor)
	requireKind(t, err, KindNotFound, "INVOICE_NOT_FOUND")

	p := f.pending(t, "250")
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.True(t, d("250").Equal(p.Amount))
}

func TestCompletedPaymentOnlyAcceptsNotes(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.pending(t, "250")

	updated, err := f.payments.UpdatePayment(testCtx, p.ID, UpdatePaymentRequest{Amount: dp("300"), Method: strp("cash")})
	require.NoError(t, err)
	assert.True(t, d("300").Equal(updated.Amount))

	_, err = f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)

	for name, req := range map[string]UpdatePaymentRequest{
		"amount":       {Amount: dp("1")},
		"method":       {Method: strp("card")},
		"due date":     {DueDate: &time.Time{}},
		"notes+amount": {Notes: strp("x"), Amount: dp("1")},
	} {
		_, err := f.payments.UpdatePayment(testCtx, p.ID, req)
		requireKind(t, err, KindInvalidTransition, CodePaymentAlreadyCompleted)
		assert.True(t, errors.Is(err, &Error{Code: CodePaymentAlreadyCompleted}), name)
	}

	noted, err := f.payments.UpdatePayment(testCtx, p.ID, UpdatePaymentRequest{Notes: strp("Paid at consultation")})
	require.NoError(t, err)
	assert.Equal(t, "Paid at consultation", noted.Notes)
	assert.True(t, d("300").Equal(noted.Amount))

	_, err = f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{}, testActor)
	requireKind(t, err, KindInvalidTransition, CodePaymentAlreadyCompleted)
	_, err = f.payments.FailPayment(testCtx, p.ID, "bounced", testActor)
	requireKind(t, err, KindInvalidTransition, CodePaymentAlreadyCompleted)
}

func TestCompletePaymentCascade(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.pending(t, "400")

	done, err := f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{Method: "bank transfer"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, done.Status)
	assert.NotNil(t, done.PaidOn)
	require.NotNil(t, done.ReceiptNumber)
	assert.Regexp(t, `^RCPT-[0-9A-F]{8}$`, *done.ReceiptNumber)
	assert.True(t, done.ReceiptSent)
	assert.Equal(t, "bank transfer", done.Method)
	assert.Equal(t, []string{TemplatePaymentReceipt}, f.email.SentTemplates())

	event := f.reloadEvent(t)
	assert.Equal(t, models.EventPaymentPartiallyPaid, event.PaymentStatus)
	assert.True(t, d("400").Equal(event.AmountPaid))

	var timeline []models.EventTimeline
	require.NoError(t, f.db.Where("event_id = ? AND kind = ?", f.event.ID, models.TimelinePaymentReceived).Find(&timeline).Error)
	assert.Len(t, timeline, 1)

	second := f.pending(t, "600")
	_, err = f.payments.CompletePayment(testCtx, second.ID, CompletePaymentRequest{ReceiptNumber: "R-100"}, testActor)
	require.NoError(t, err)
	event = f.reloadEvent(t)
	assert.Equal(t, models.EventPaymentPaid, event.PaymentStatus)

	reloaded, err := f.payments.GetPayment(testCtx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "R-100", *reloaded.ReceiptNumber)
}

func TestCompletePaymentReceiptFailureIsNotFatal(t *testing.T) {
	f := newPaymentFixture(t)
	f.email.FailTemplate(TemplatePaymentReceipt)
	p := f.pending(t, "100")

	done, err := f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, done.Status)
	assert.False(t, done.ReceiptSent)
}

func TestCompletePaymentSettlesCoveredInvoice(t *testing.T) {
	f := newPaymentFixture(t)
	inv, err := f.invoices.CreateInvoice(testCtx, f.event.ID, CreateInvoiceRequest{}, testActor)
	require.NoError(t, err)
	_, err = f.invoices.AddLineItem(testCtx, inv.ID, line("Coverage", "1", "500"))
	require.NoError(t, err)
	_, err = f.invoices.IssueInvoice(testCtx, inv.ID, testActor)
	require.NoError(t, err)

	first, err := f.payments.CreatePayment(testCtx, CreatePaymentRequest{EventID: f.event.ID, InvoiceID: &inv.ID, Amount: d("200")}, testActor)
	require.NoError(t, err)
	_, err = f.payments.CompletePayment(testCtx, first.ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)

	partial, err := f.invoices.GetInvoice(testCtx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusIssued, partial.Status)
	assert.Equal(t, models.EventPaymentPartiallyPaid, f.reloadEvent(t).PaymentStatus)

	second, err := f.payments.CreatePayment(testCtx, CreatePaymentRequest{EventID: f.event.ID, InvoiceID: &inv.ID, Amount: d("300")}, testActor)
	require.NoError(t, err)
	_, err = f.payments.CompletePayment(testCtx, second.ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)

	settled, err := f.invoices.GetInvoice(testCtx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, settled.Status)
	assert.Equal(t, models.EventPaymentPaid, f.reloadEvent(t).PaymentStatus)
}

func TestCompletePaymentAdvancesWorkflow(t *testing.T) {
	f := newPaymentFixture(t)
	tpl, err := f.workflows.CreateTemplate(testCtx, CreateTemplateRequest{Name: "Wedding"})
	require.NoError(t, err)
	_, err = f.workflows.CreateStage(testCtx, tpl.ID, StageInput{Stage: models.StageLead, Name: "Inquiry"})
	require.NoError(t, err)
	booked, err := f.workflows.CreateStage(testCtx, tpl.ID, StageInput{
		Stage: models.StageProduction, Name: "Booked", TriggerOnPaymentReceived: true,
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Event{}).Where("id = ?", f.event.ID).
		Update("workflow_template_id", tpl.ID).Error)

	p := f.pending(t, "100")
	_, err = f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)

	event := f.reloadEvent(t)
	require.NotNil(t, event.CurrentStageID)
	assert.Equal(t, booked.ID, *event.CurrentStageID)

	var triggers []models.WorkflowTrigger
	require.NoError(t, f.db.Where("event_id = ?", f.event.ID).Find(&triggers).Error)
	require.Len(t, triggers, 1)
	assert.Equal(t, models.TriggerPaymentReceived, triggers[0].TriggerType)
}

func TestCompletePaymentSettlesInstallment(t *testing.T) {
	f := newPaymentFixture(t)
	plan, err := f.plans.CreatePlan(testCtx, CreatePlanRequest{
		EventID:              f.event.ID,
		TotalAmount:          d("300"),
		NumberOfInstallments: 3,
		Frequency:            models.FrequencyWeekly,
		StartDate:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatePayments:       true,
	}, testActor)
	require.NoError(t, err)
	require.Len(t, plan.Installments, 3)

	var payments []models.Payment
	require.NoError(t, f.db.Where("installment_id = ?", plan.Installments[0].ID).Find(&payments).Error)
	require.Len(t, payments, 1)

	_, err = f.payments.CompletePayment(testCtx, payments[0].ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)

	summary, err := f.plans.Summary(testCtx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PaidCount)
	assert.True(t, d("100").Equal(summary.PaidAmount), "paid %s", summary.PaidAmount)
	assert.True(t, d("200").Equal(summary.OutstandingAmount), "outstanding %s", summary.OutstandingAmount)
	require.NotNil(t, summary.NextDue)
	assert.Equal(t, 2, summary.NextDue.Number)
}

func TestFailPayment(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.pending(t, "100")

	failed, err := f.payments.FailPayment(testCtx, p.ID, "card declined", testActor)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "card declined", failed.FailureReason)

	_, err = f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{}, testActor)
	requireKind(t, err, KindInvalidTransition, CodeInvalidPaymentStatus)
	_, err = f.payments.UpdatePayment(testCtx, p.ID, UpdatePaymentRequest{Amount: dp("5")})
	requireKind(t, err, KindInvalidTransition, CodeInvalidPaymentStatus)
}

func TestRefundPayment(t *testing.T) {
	f := newPaymentFixture(t)
	p := f.pending(t, "1000")

	_, err := f.payments.RefundPayment(testCtx, p.ID, d("10"), "", testActor)
	requireKind(t, err, KindInvalidTransition, CodeInvalidPaymentStatus)

	_, err = f.payments.CompletePayment(testCtx, p.ID, CompletePaymentRequest{}, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.EventPaymentPaid, f.reloadEvent(t).PaymentStatus)

	refunded, err := f.payments.RefundPayment(testCtx, p.ID, d("400"), "Reduced coverage", testActor)
	require.NoError(t, err)
	require.Len(t, refunded.Refunds, 1)
	event := f.reloadEvent(t)
	assert.Equal(t, models.EventPaymentPartiallyPaid, event.PaymentStatus)
	assert.True(t, d("600").Equal(event.AmountPaid), "paid %s", event.AmountPaid)

	_, err = f.payments.RefundPayment(testCtx, p.ID, d("600.01"), "", testActor)
	requireKind(t, err, KindValidation, CodeRefundExceedsPayment)

	_, err = f.payments.RefundPayment(testCtx, p.ID, d("600"), "Cancelled", testActor)
	require.NoError(t, err)
	assert.Equal(t, models.EventPaymentUnpaid, f.reloadEvent(t).PaymentStatus)

	_, err = f.payments.RefundPayment(testCtx, p.ID, d("0"), "", testActor)
	requireKind(t, err, KindValidation, CodeValidation)
}

func TestChargeOnline(t *testing.T) {
	f := newPaymentFixture(t)
	req := ChargeOnlineRequest{Token: "tok", PaymentMethodID: "visa", Installments: 1, PayerEmail: "jamie@example.com"}

	_, err := f.payments.ChargeOnline(testCtx, 1, ChargeOnlineRequest{}, testActor)
	requireKind(t, err, KindValidation, CodeValidation)

	approved := f.pending(t, "150")
	done, err := f.payments.ChargeOnline(testCtx, approved.ID, req, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, done.Status)
	assert.Equal(t, "mock-1", done.GatewayReference)
	assert.Equal(t, "card:visa", done.Method)
	require.Len(t, f.gateway.Charges, 1)
	assert.True(t, d("150").Equal(f.gateway.Charges[0].Amount))

	f.gateway.Status = "rejected"
	rejected := f.pending(t, "150")
	failed, err := f.payments.ChargeOnline(testCtx, rejected.ID, req, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)

	f.gateway.Status = "in_process"
	waiting := f.pending(t, "150")
	still, err := f.payments.ChargeOnline(testCtx, waiting.ID, req, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, still.Status)
	assert.Equal(t, "mock-3", still.GatewayReference)

	f.gateway.Err = errors.New("connection reset")
	broken := f.pending(t, "150")
	_, err = f.payments.ChargeOnline(testCtx, broken.ID, req, testActor)
	requireKind(t, err, KindExternalDependency, CodePaymentGatewayFailed)

	_, err = f.payments.ChargeOnline(testCtx, approved.ID, req, testActor)
	requireKind(t, err, KindInvalidTransition, CodeInvalidPaymentStatus)
}
