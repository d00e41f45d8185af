package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/eventflow-api/services"
)

type CreateInvoiceRequest struct {
	QuoteID *uint            `json:"quote_id"`
	DueDate *time.Time       `json:"due_date"`
	Notes   string           `json:"notes"`
	TaxRate *decimal.Decimal `json:"tax_rate"`
}

type InvoiceHandler struct {
	actorResolver
	invoices *services.InvoiceService
}

func NewInvoiceHandler(invoices *services.InvoiceService, users *services.UserService) *InvoiceHandler {
	return &InvoiceHandler{actorResolver: actorResolver{users: users}, invoices: invoices}
}

// CreateInvoice handles POST /api/v1/events/:id/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if !bind(c, &req) {
		return
	}
	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), eventID, services.CreateInvoiceRequest{
		QuoteID: req.QuoteID,
		DueDate: req.DueDate,
		Notes:   req.Notes,
		TaxRate: req.TaxRate,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, invoice)
}

// CreateFromQuote handles POST /api/v1/quotes/:id/invoice
func (h *InvoiceHandler) CreateFromQuote(c *gin.Context) {
	quoteID, ok := parseID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.CreateFromQuote(c.Request.Context(), quoteID, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, invoice)
}

// ListInvoices handles GET /api/v1/events/:id/invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	invoices, err := h.invoices.ListInvoices(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoices)
}

// GetInvoice handles GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

// AddLineItem handles POST /api/v1/invoices/:id/line-items
func (h *InvoiceHandler) AddLineItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if !bind(c, &req) {
		return
	}
	invoice, err := h.invoices.AddLineItem(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, invoice)
}

// UpdateLineItem handles PATCH /api/v1/invoice-line-items/:id
func (h *InvoiceHandler) UpdateLineItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateLineItemRequest
	if !bind(c, &req) {
		return
	}
	invoice, err := h.invoices.UpdateLineItem(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

// DeleteLineItem handles DELETE /api/v1/invoice-line-items/:id
func (h *InvoiceHandler) DeleteLineItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.DeleteLineItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

func (h *InvoiceHandler) transition(c *gin.Context, fn func(*gin.Context, uint) (interface{}, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	invoice, err := fn(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoice)
}

// Issue handles POST /api/v1/invoices/:id/issue
func (h *InvoiceHandler) Issue(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uint) (interface{}, error) {
		return h.invoices.IssueInvoice(c.Request.Context(), id, h.actor(c))
	})
}

// MarkPaid handles POST /api/v1/invoices/:id/mark-paid
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uint) (interface{}, error) {
		return h.invoices.MarkPaid(c.Request.Context(), id, h.actor(c))
	})
}

// Void handles POST /api/v1/invoices/:id/void
func (h *InvoiceHandler) Void(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uint) (interface{}, error) {
		return h.invoices.VoidInvoice(c.Request.Context(), id, h.actor(c))
	})
}

// Cancel handles POST /api/v1/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id uint) (interface{}, error) {
		return h.invoices.CancelInvoice(c.Request.Context(), id, h.actor(c))
	})
}
