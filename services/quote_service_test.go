package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

type quoteFixture struct {
	db        *gorm.DB
	email     *MockEmailSender
	quotes    *QuoteService
	discounts *DiscountService
	event     *models.Event
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()
	db := setupTestDB(t)
	email := NewMockEmailSender()

	client := models.Client{Name: "Jamie Smith", Email: "jamie@example.com"}
	require.NoError(t, db.Create(&client).Error)
	event := models.Event{Name: "Smith wedding", ClientID: &client.ID, Status: models.EventStatusInquiry, PaymentStatus: models.EventPaymentUnpaid}
	require.NoError(t, db.Create(&event).Error)

	return &quoteFixture{
		db:        db,
		email:     email,
		quotes:    NewQuoteService(db, NewNotifier(email, testLog), d("0"), testLog),
		discounts: NewDiscountService(db, testLog),
		event:     &event,
	}
}

func (f *quoteFixture) draft(t *testing.T, lines ...LineItemInput) *models.EventQuote {
	t.Helper()
	q, err := f.quotes.CreateQuote(testCtx, f.event.ID, CreateQuoteRequest{Title: "Wedding package"}, testActor)
	require.NoError(t, err)
	for _, in := range lines {
		q, err = f.quotes.AddLineItem(testCtx, q.ID, in)
		require.NoError(t, err)
	}
	return q
}

func line(desc, qty, price string) LineItemInput {
	return LineItemInput{Description: desc, Quantity: d(qty), UnitPrice: dp(price)}
}

func TestCreateQuoteIncrementsVersion(t *testing.T) {
	f := newQuoteFixture(t)

	q1 := f.draft(t)
	q2 := f.draft(t)
	assert.Equal(t, 1, q1.Version)
	assert.Equal(t, 2, q2.Version)
	assert.Equal(t, models.QuoteStatusDraft, q2.Status)

	_, err := f.quotes.CreateQuote(testCtx, 9999, CreateQuoteRequest{}, testActor)
	requireKind(t, err, KindNotFound, "EVENT_NOT_FOUND")

	_, err = f.quotes.CreateQuote(testCtx, f.event.ID, CreateQuoteRequest{TaxRate: dp("101")}, testActor)
	requireKind(t, err, KindValidation, CodeValidation)
}

func TestQuoteLineItemsRecomputeTotals(t *testing.T) {
	f := newQuoteFixture(t)
	q := f.draft(t, line("Photography", "2", "19.99"), line("Album", "3", "5.00"))
	assert.True(t, d("54.98").Equal(q.Subtotal), "got %s", q.Subtotal)
	assert.True(t, d("54.98").Equal(q.TotalAmount))
	require.Len(t, q.LineItems, 2)

	q, err := f.quotes.UpdateLineItem(testCtx, q.LineItems[0].ID, UpdateLineItemRequest{Quantity: dp("1")})
	require.NoError(t, err)
	assert.True(t, d("34.99").Equal(q.Subtotal), "got %s", q.Subtotal)

	q, err = f.quotes.DeleteLineItem(testCtx, q.LineItems[1].ID)
	require.NoError(t, err)
	assert.True(t, d("19.99").Equal(q.Subtotal), "got %s", q.Subtotal)

	stored, err := f.quotes.GetQuote(testCtx, q.ID)
	require.NoError(t, err)
	assert.True(t, d("19.99").Equal(stored.TotalAmount))
}

func TestAddLineItemFromProduct(t *testing.T) {
	f := newQuoteFixture(t)
	product := createTestProduct(t, f.db, "Full day coverage", "1500.00")

	q := f.draft(t, LineItemInput{ProductID: &product.ID, Quantity: d("1")})
	require.Len(t, q.LineItems, 1)
	assert.Equal(t, "Full day coverage", q.LineItems[0].Description)
	assert.True(t, d("1500").Equal(q.LineItems[0].UnitPrice))

	_, err := f.quotes.AddLineItem(testCtx, q.ID, LineItemInput{Description: "x", Quantity: d("0"), UnitPrice: dp("1")})
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = f.quotes.AddLineItem(testCtx, q.ID, LineItemInput{Description: "x", Quantity: d("1")})
	requireKind(t, err, KindValidation, CodeValidation)
}

func TestQuoteDiscountThenTax(t *testing.T) {
	f := newQuoteFixture(t)
	product := createTestProduct(t, f.db, "Portrait session", "100.00")
	_, err := f.discounts.CreateDiscount(testCtx, DiscountInput{Code: "spring20", Type: models.DiscountPercentage, Value: d("20")})
	require.NoError(t, err)

	q, err := f.quotes.CreateQuote(testCtx, f.event.ID, CreateQuoteRequest{TaxRate: dp("10")}, testActor)
	require.NoError(t, err)
	q, err = f.quotes.AddLineItem(testCtx, q.ID, LineItemInput{ProductID: &product.ID, Quantity: d("1")})
	require.NoError(t, err)

	q, err = f.quotes.ApplyDiscountCode(testCtx, q.ID, "Spring20")
	require.NoError(t, err)
	assert.True(t, d("100.00").Equal(q.Subtotal), "subtotal %s", q.Subtotal)
	assert.True(t, d("20.00").Equal(q.DiscountAmount), "discount %s", q.DiscountAmount)
	assert.True(t, d("8.00").Equal(q.TaxAmount), "tax %s", q.TaxAmount)
	assert.True(t, d("88.00").Equal(q.TotalAmount), "total %s", q.TotalAmount)

	q, err = f.quotes.RemoveDiscount(testCtx, q.ID)
	require.NoError(t, err)
	assert.True(t, q.DiscountAmount.IsZero())
	assert.True(t, d("110.00").Equal(q.TotalAmount), "total %s", q.TotalAmount)
}

func TestAppliedDiscountSurvivesCodeDeletion(t *testing.T) {
	f := newQuoteFixture(t)
	code, err := f.discounts.CreateDiscount(testCtx, DiscountInput{Code: "TWENTY", Type: models.DiscountPercentage, Value: d("20")})
	require.NoError(t, err)

	q := f.draft(t, line("Session", "1", "100.00"))
	q, err = f.quotes.ApplyDiscountCode(testCtx, q.ID, "TWENTY")
	require.NoError(t, err)
	assert.True(t, d("80.00").Equal(q.TotalAmount), "total %s", q.TotalAmount)

	require.NoError(t, f.discounts.DeleteDiscount(testCtx, code.ID))

	q, err = f.quotes.AddLineItem(testCtx, q.ID, line("Prints", "1", "50.00"))
	require.NoError(t, err)
	require.NotNil(t, q.DiscountCodeID)
	assert.Equal(t, code.ID, *q.DiscountCodeID)
	assert.True(t, d("30.00").Equal(q.DiscountAmount), "discount %s", q.DiscountAmount)
	assert.True(t, d("120.00").Equal(q.TotalAmount), "total %s", q.TotalAmount)

	_, err = f.quotes.ApplyDiscountCode(testCtx, f.draft(t, line("Album", "1", "10")).ID, "TWENTY")
	require.Error(t, err, "a deleted code cannot be applied to new quotes")
}

func TestQuoteFixedDiscountIsCapped(t *testing.T) {
	f := newQuoteFixture(t)
	_, err := f.discounts.CreateDiscount(testCtx, DiscountInput{Code: "FIFTY", Type: models.DiscountFixed, Value: d("50")})
	require.NoError(t, err)

	q := f.draft(t, line("Prints", "1", "30.00"))
	q, err = f.quotes.ApplyDiscountCode(testCtx, q.ID, "fifty")
	require.NoError(t, err)
	assert.True(t, d("30.00").Equal(q.DiscountAmount), "discount %s", q.DiscountAmount)
	assert.True(t, q.TotalAmount.IsZero())
}

func TestApplyInactiveDiscountIsRejected(t *testing.T) {
	f := newQuoteFixture(t)
	_, err := f.discounts.CreateDiscount(testCtx, DiscountInput{Code: "OLD", Type: models.DiscountFixed, Value: d("5"), IsActive: boolp(false)})
	require.NoError(t, err)

	q := f.draft(t, line("Prints", "1", "30.00"))
	_, err = f.quotes.ApplyDiscountCode(testCtx, q.ID, "OLD")
	requireKind(t, err, KindValidation, CodeDiscountNotApplicable)

	_, err = f.quotes.ApplyDiscountCode(testCtx, q.ID, "MISSING")
	requireKind(t, err, KindNotFound, "DISCOUNT_CODE_NOT_FOUND")
}

func TestSendQuoteSchedulesFollowUpAndEmails(t *testing.T) {
	f := newQuoteFixture(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	f.quotes.now = fixedClock(now)

	validUntil := now.AddDate(0, 0, 30)
	q, err := f.quotes.CreateQuote(testCtx, f.event.ID, CreateQuoteRequest{ValidUntil: &validUntil}, testActor)
	require.NoError(t, err)
	_, err = f.quotes.AddLineItem(testCtx, q.ID, line("Coverage", "1", "500"))
	require.NoError(t, err)

	sent, err := f.quotes.SendQuote(testCtx, q.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	var reminders []models.FollowUpReminder
	require.NoError(t, f.db.Where("quote_id = ?", q.ID).Find(&reminders).Error)
	require.Len(t, reminders, 1)
	assert.True(t, reminders[0].DueAt.Equal(now.Add(FollowUpDelay)))

	require.Len(t, f.email.Sent(), 1)
	assert.Equal(t, TemplateQuoteSent, f.email.Sent()[0].Template)
	assert.Equal(t, "jamie@example.com", f.email.Sent()[0].Recipient)

	var notes []models.Notification
	require.NoError(t, f.db.Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Delivered)

	_, err = f.quotes.AddLineItem(testCtx, q.ID, line("Extra", "1", "1"))
	requireKind(t, err, KindInvalidTransition, CodeInvalidQuoteStatus)
}

func TestSendQuoteWithoutFollowUpWhenExpiringSoon(t *testing.T) {
	f := newQuoteFixture(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	f.quotes.now = fixedClock(now)

	validUntil := now.AddDate(0, 0, 2)
	q, err := f.quotes.CreateQuote(testCtx, f.event.ID, CreateQuoteRequest{ValidUntil: &validUntil}, testActor)
	require.NoError(t, err)
	_, err = f.quotes.SendQuote(testCtx, q.ID, testActor)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.FollowUpReminder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSendQuoteEmailFailureIsNotFatal(t *testing.T) {
	f := newQuoteFixture(t)
	f.email.FailTemplate(TemplateQuoteSent)

	q := f.draft(t, line("Coverage", "1", "500"))
	sent, err := f.quotes.SendQuote(testCtx, q.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusSent, sent.Status)

	var note models.Notification
	require.NoError(t, f.db.First(&note).Error)
	assert.False(t, note.Delivered)
}

func TestAcceptQuoteConfirmsEvent(t *testing.T) {
	f := newQuoteFixture(t)
	q := f.draft(t, line("Coverage", "1", "1200.00"))

	_, err := f.quotes.AcceptQuote(testCtx, q.ID, testActor)
	requireKind(t, err, KindInvalidTransition, CodeInvalidQuoteStatus)

	_, err = f.quotes.SendQuote(testCtx, q.ID, testActor)
	require.NoError(t, err)
	accepted, err := f.quotes.AcceptQuote(testCtx, q.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAccepted, accepted.Status)
	assert.NotNil(t, accepted.AcceptedAt)

	var event models.Event
	require.NoError(t, f.db.First(&event, f.event.ID).Error)
	assert.Equal(t, models.EventStatusConfirmed, event.Status)
	assert.True(t, d("1200.00").Equal(event.TotalAmount), "total %s", event.TotalAmount)
	assert.Equal(t, models.EventPaymentUnpaid, event.PaymentStatus)

	var timeline []models.EventTimeline
	require.NoError(t, f.db.Where("event_id = ?", f.event.ID).Order("id ASC").Find(&timeline).Error)
	require.Len(t, timeline, 2)
	assert.Equal(t, models.TimelineQuoteSent, timeline[0].Kind)
	assert.Equal(t, models.TimelineQuoteAccepted, timeline[1].Kind)

	_, err = f.quotes.RejectQuote(testCtx, q.ID, "changed mind", testActor)
	requireKind(t, err, KindInvalidTransition, CodeInvalidQuoteStatus)
}

func TestRejectAndExpireQuote(t *testing.T) {
	f := newQuoteFixture(t)

	q1 := f.draft(t)
	_, err := f.quotes.SendQuote(testCtx, q1.ID, testActor)
	require.NoError(t, err)
	rejected, err := f.quotes.RejectQuote(testCtx, q1.ID, "Over budget", testActor)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusRejected, rejected.Status)
	assert.Equal(t, "Over budget", rejected.RejectionReason)
	assert.NotNil(t, rejected.RejectedAt)

	q2 := f.draft(t)
	_, err = f.quotes.ExpireQuote(testCtx, q2.ID, testActor)
	requireKind(t, err, KindInvalidTransition, CodeInvalidQuoteStatus)
	_, err = f.quotes.SendQuote(testCtx, q2.ID, testActor)
	require.NoError(t, err)
	expired, err := f.quotes.ExpireQuote(testCtx, q2.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusExpired, expired.Status)
}

func TestCreateNextVersionClonesLines(t *testing.T) {
	f := newQuoteFixture(t)
	source := f.draft(t, line("Coverage", "1", "1200.00"), line("Prints", "10", "2.50"))
	opt, err := f.quotes.AddOption(testCtx, source.ID, "Premium", "Adds a second shooter")
	require.NoError(t, err)
	_, err = f.quotes.AddOptionItem(testCtx, opt.ID, line("Second shooter", "1", "400"))
	require.NoError(t, err)
	_, err = f.quotes.SendQuote(testCtx, source.ID, testActor)
	require.NoError(t, err)

	next, err := f.quotes.CreateNextVersion(testCtx, source.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, source.Version+1, next.Version)
	assert.Equal(t, models.QuoteStatusDraft, next.Status)
	assert.True(t, source.TotalAmount.Equal(next.TotalAmount))

	require.Len(t, next.LineItems, len(source.LineItems))
	for i, li := range next.LineItems {
		orig := source.LineItems[i]
		assert.NotEqual(t, orig.ID, li.ID)
		assert.Equal(t, orig.Description, li.Description)
		assert.True(t, orig.Quantity.Equal(li.Quantity))
		assert.True(t, orig.UnitPrice.Equal(li.UnitPrice))
		assert.True(t, orig.Total.Equal(li.Total))
	}
	require.Len(t, next.Options, 1)
	require.Len(t, next.Options[0].Items, 1)
	assert.Equal(t, "Second shooter", next.Options[0].Items[0].Description)

	reloaded, err := f.quotes.GetQuote(testCtx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusSent, reloaded.Status)
}

func TestSelectOption(t *testing.T) {
	f := newQuoteFixture(t)
	q := f.draft(t)
	a, err := f.quotes.AddOption(testCtx, q.ID, "Basic", "")
	require.NoError(t, err)
	b, err := f.quotes.AddOption(testCtx, q.ID, "Premium", "")
	require.NoError(t, err)

	_, err = f.quotes.SelectOption(testCtx, a.ID)
	require.NoError(t, err)
	q, err = f.quotes.SelectOption(testCtx, b.ID)
	require.NoError(t, err)

	selected := map[uint]bool{}
	for _, o := range q.Options {
		selected[o.ID] = o.IsSelected
	}
	assert.False(t, selected[a.ID])
	assert.True(t, selected[b.ID])
}

func TestDeleteQuoteOnlyInDraft(t *testing.T) {
	f := newQuoteFixture(t)
	draft := f.draft(t, line("Coverage", "1", "100"))
	require.NoError(t, f.quotes.DeleteQuote(testCtx, draft.ID))
	_, err := f.quotes.GetQuote(testCtx, draft.ID)
	requireKind(t, err, KindNotFound, "QUOTE_NOT_FOUND")

	sent := f.draft(t)
	_, err = f.quotes.SendQuote(testCtx, sent.ID, testActor)
	require.NoError(t, err)
	err = f.quotes.DeleteQuote(testCtx, sent.ID)
	requireKind(t, err, KindInvalidTransition, CodeInvalidQuoteStatus)
}
