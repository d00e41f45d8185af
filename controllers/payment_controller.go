package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

type CreatePaymentRequest struct {
	QuoteID       *uint           `json:"quote_id"`
	InvoiceID     *uint           `json:"invoice_id"`
	InstallmentID *uint           `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	DueDate       *time.Time      `json:"due_date"`
	Notes         string          `json:"notes"`
}

type UpdatePaymentRequest struct {
	Amount  *decimal.Decimal `json:"amount"`
	Method  *string          `json:"method"`
	DueDate *time.Time       `json:"due_date"`
	Notes   *string          `json:"notes"`
}

type CompletePaymentRequest struct {
	PaidOn           *time.Time `json:"paid_on"`
	Method           string     `json:"method"`
	ReceiptNumber    string     `json:"receipt_number"`
	GatewayReference string     `json:"gateway_reference"`
}

type FailPaymentRequest struct {
	Reason string `json:"reason"`
}

type RefundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type ChargeOnlineRequest struct {
	Token           string `json:"token" binding:"required"`
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
	Installments    int    `json:"installments"`
	PayerEmail      string `json:"payer_email" binding:"omitempty,email"`
}

type CreatePlanRequest struct {
	TotalAmount          decimal.Decimal      `json:"total_amount"`
	DownPaymentAmount    decimal.Decimal      `json:"down_payment_amount"`
	NumberOfInstallments int                  `json:"number_of_installments" binding:"required,gte=1"`
	Frequency            models.PlanFrequency `json:"frequency" binding:"required"`
	StartDate            time.Time            `json:"start_date" binding:"required"`
	CreatePayments       bool                 `json:"create_payments"`
}

type PaymentHandler struct {
	actorResolver
	payments *services.PaymentService
	plans    *services.PaymentPlanService
}

func NewPaymentHandler(payments *services.PaymentService, plans *services.PaymentPlanService, users *services.UserService) *PaymentHandler {
	return &PaymentHandler{actorResolver: actorResolver{users: users}, payments: payments, plans: plans}
}

// CreatePayment handles POST /api/v1/events/:id/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if !bind(c, &req) {
		return
	}
	payment, err := h.payments.CreatePayment(c.Request.Context(), services.CreatePaymentRequest{
		EventID:       eventID,
		QuoteID:       req.QuoteID,
		InvoiceID:     req.InvoiceID,
		InstallmentID: req.InstallmentID,
		Amount:        req.Amount,
		Method:        req.Method,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, payment)
}

// ListPayments handles GET /api/v1/events/:id/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payments)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

// UpdatePayment handles PATCH /api/v1/payments/:id
func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdatePaymentRequest
	if !bind(c, &req) {
		return
	}
	payment, err := h.payments.UpdatePayment(c.Request.Context(), id, services.UpdatePaymentRequest{
		Amount:  req.Amount,
		Method:  req.Method,
		DueDate: req.DueDate,
		Notes:   req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

// Complete handles POST /api/v1/payments/:id/complete
func (h *PaymentHandler) Complete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CompletePaymentRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	payment, err := h.payments.CompletePayment(c.Request.Context(), id, services.CompletePaymentRequest{
		PaidOn:           req.PaidOn,
		Method:           req.Method,
		ReceiptNumber:    req.ReceiptNumber,
		GatewayReference: req.GatewayReference,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

// Fail handles POST /api/v1/payments/:id/fail
func (h *PaymentHandler) Fail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req FailPaymentRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	payment, err := h.payments.FailPayment(c.Request.Context(), id, req.Reason, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

// Refund handles POST /api/v1/payments/:id/refunds
func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RefundPaymentRequest
	if !bind(c, &req) {
		return
	}
	payment, err := h.payments.RefundPayment(c.Request.Context(), id, req.Amount, req.Reason, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

// Charge handles POST /api/v1/payments/:id/charge
func (h *PaymentHandler) Charge(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ChargeOnlineRequest
	if !bind(c, &req) {
		return
	}
	payment, err := h.payments.ChargeOnline(c.Request.Context(), id, services.ChargeOnlineRequest{
		Token:           req.Token,
		PaymentMethodID: req.PaymentMethodID,
		Installments:    req.Installments,
		PayerEmail:      req.PayerEmail,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

// CreatePlan handles POST /api/v1/events/:id/payment-plans
func (h *PaymentHandler) CreatePlan(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreatePlanRequest
	if !bind(c, &req) {
		return
	}
	plan, err := h.plans.CreatePlan(c.Request.Context(), services.CreatePlanRequest{
		EventID:              eventID,
		TotalAmount:          req.TotalAmount,
		DownPaymentAmount:    req.DownPaymentAmount,
		NumberOfInstallments: req.NumberOfInstallments,
		Frequency:            req.Frequency,
		StartDate:            req.StartDate,
		CreatePayments:       req.CreatePayments,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, plan)
}

// GetPlan handles GET /api/v1/payment-plans/:id
func (h *PaymentHandler) GetPlan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	plan, err := h.plans.GetPlan(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, plan)
}

// PlanSummary handles GET /api/v1/payment-plans/:id/summary
func (h *PaymentHandler) PlanSummary(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	summary, err := h.plans.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, summary)
}
