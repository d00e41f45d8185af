package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/eventflow-api/services"
)

type CreateQuoteRequest struct {
	Title      string           `json:"title"`
	Terms      string           `json:"terms"`
	ValidUntil *time.Time       `json:"valid_until"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
}

type LineItemRequest struct {
	ProductID   *uint            `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

func (r LineItemRequest) input() services.LineItemInput {
	qty := r.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return services.LineItemInput{ProductID: r.ProductID, Description: r.Description, Quantity: qty, UnitPrice: r.UnitPrice}
}

type UpdateLineItemRequest struct {
	Description *string          `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

func (r UpdateLineItemRequest) input() services.UpdateLineItemRequest {
	return services.UpdateLineItemRequest{Description: r.Description, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
}

type ApplyDiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

type RejectQuoteRequest struct {
	Reason string `json:"reason"`
}

type QuoteOptionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type QuoteHandler struct {
	actorResolver
	quotes *services.QuoteService
}

func NewQuoteHandler(quotes *services.QuoteService, users *services.UserService) *QuoteHandler {
	return &QuoteHandler{actorResolver: actorResolver{users: users}, quotes: quotes}
}

// CreateQuote handles POST /api/v1/events/:id/quotes
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateQuoteRequest
	if !bind(c, &req) {
		return
	}
	quote, err := h.quotes.CreateQuote(c.Request.Context(), eventID, services.CreateQuoteRequest{
		Title:      req.Title,
		Terms:      req.Terms,
		ValidUntil: req.ValidUntil,
		TaxRate:    req.TaxRate,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, quote)
}

// ListQuotes handles GET /api/v1/events/:id/quotes
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	quotes, err := h.quotes.ListQuotes(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quotes)
}

// GetQuote handles GET /api/v1/quotes/:id
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.GetQuote(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// DeleteQuote handles DELETE /api/v1/quotes/:id
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.quotes.DeleteQuote(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// AddLineItem handles POST /api/v1/quotes/:id/line-items
func (h *QuoteHandler) AddLineItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if !bind(c, &req) {
		return
	}
	quote, err := h.quotes.AddLineItem(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, quote)
}

// UpdateLineItem handles PATCH /api/v1/quote-line-items/:id
func (h *QuoteHandler) UpdateLineItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateLineItemRequest
	if !bind(c, &req) {
		return
	}
	quote, err := h.quotes.UpdateLineItem(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// DeleteLineItem handles DELETE /api/v1/quote-line-items/:id
func (h *QuoteHandler) DeleteLineItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.DeleteLineItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// ApplyDiscount handles POST /api/v1/quotes/:id/discount
func (h *QuoteHandler) ApplyDiscount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ApplyDiscountRequest
	if !bind(c, &req) {
		return
	}
	quote, err := h.quotes.ApplyDiscountCode(c.Request.Context(), id, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// RemoveDiscount handles DELETE /api/v1/quotes/:id/discount
func (h *QuoteHandler) RemoveDiscount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.RemoveDiscount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// Send handles POST /api/v1/quotes/:id/send
func (h *QuoteHandler) Send(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.SendQuote(c.Request.Context(), id, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// Accept handles POST /api/v1/quotes/:id/accept
func (h *QuoteHandler) Accept(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.AcceptQuote(c.Request.Context(), id, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// Reject handles POST /api/v1/quotes/:id/reject
func (h *QuoteHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RejectQuoteRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	quote, err := h.quotes.RejectQuote(c.Request.Context(), id, req.Reason, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// Expire handles POST /api/v1/quotes/:id/expire
func (h *QuoteHandler) Expire(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.ExpireQuote(c.Request.Context(), id, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}

// NextVersion handles POST /api/v1/quotes/:id/versions
func (h *QuoteHandler) NextVersion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.CreateNextVersion(c.Request.Context(), id, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, quote)
}

// AddOption handles POST /api/v1/quotes/:id/options
func (h *QuoteHandler) AddOption(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req QuoteOptionRequest
	if !bind(c, &req) {
		return
	}
	option, err := h.quotes.AddOption(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, option)
}

// AddOptionItem handles POST /api/v1/quote-options/:id/items
func (h *QuoteHandler) AddOptionItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if !bind(c, &req) {
		return
	}
	option, err := h.quotes.AddOptionItem(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, option)
}

// SelectOption handles POST /api/v1/quote-options/:id/select
func (h *QuoteHandler) SelectOption(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.SelectOption(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quote)
}
