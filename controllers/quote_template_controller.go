package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/eventflow-api/services"
)

type TemplateProductRequest struct {
	ProductID uint             `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Order     *int             `json:"order" binding:"omitempty,gte=1"`
}

func (r TemplateProductRequest) input() services.TemplateProductInput {
	qty := r.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return services.TemplateProductInput{ProductID: r.ProductID, Quantity: qty, UnitPrice: r.UnitPrice, Order: r.Order}
}

type CreateQuoteTemplateRequest struct {
	Name         string                   `json:"name" binding:"required"`
	Title        string                   `json:"title"`
	Terms        string                   `json:"terms"`
	TaxRate      *decimal.Decimal         `json:"tax_rate"`
	ValidityDays int                      `json:"validity_days" binding:"gte=0"`
	Products     []TemplateProductRequest `json:"products" binding:"dive"`
}

type ApplyQuoteTemplateRequest struct {
	EventID uint `json:"event_id" binding:"required"`
}

type QuoteTemplateHandler struct {
	actorResolver
	templates *services.QuoteTemplateService
}

func NewQuoteTemplateHandler(templates *services.QuoteTemplateService, users *services.UserService) *QuoteTemplateHandler {
	return &QuoteTemplateHandler{actorResolver: actorResolver{users: users}, templates: templates}
}

// CreateTemplate handles POST /api/v1/quote-templates
func (h *QuoteTemplateHandler) CreateTemplate(c *gin.Context) {
	var req CreateQuoteTemplateRequest
	if !bind(c, &req) {
		return
	}
	products := make([]services.TemplateProductInput, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, p.input())
	}
	tpl, err := h.templates.CreateTemplate(c.Request.Context(), services.CreateQuoteTemplateRequest{
		Name:         req.Name,
		Title:        req.Title,
		Terms:        req.Terms,
		TaxRate:      req.TaxRate,
		ValidityDays: req.ValidityDays,
		Products:     products,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, tpl)
}

// ListTemplates handles GET /api/v1/quote-templates
func (h *QuoteTemplateHandler) ListTemplates(c *gin.Context) {
	tpls, err := h.templates.ListTemplates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpls)
}

// GetTemplate handles GET /api/v1/quote-templates/:id
func (h *QuoteTemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tpl, err := h.templates.GetTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpl)
}

// DeleteTemplate handles DELETE /api/v1/quote-templates/:id
func (h *QuoteTemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.templates.DeleteTemplate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// AddProduct handles POST /api/v1/quote-templates/:id/products
func (h *QuoteTemplateHandler) AddProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req TemplateProductRequest
	if !bind(c, &req) {
		return
	}
	tpl, err := h.templates.AddProduct(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, tpl)
}

// RemoveProduct handles DELETE /api/v1/quote-template-products/:id
func (h *QuoteTemplateHandler) RemoveProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.templates.RemoveProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// MoveProduct handles POST /api/v1/quote-template-products/:id/move
func (h *QuoteTemplateHandler) MoveProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MoveRequest
	if !bind(c, &req) {
		return
	}
	tpl, err := h.templates.MoveProduct(c.Request.Context(), id, req.Order)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpl)
}

// ReorderProducts handles POST /api/v1/quote-templates/:id/products/reorder
func (h *QuoteTemplateHandler) ReorderProducts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ReorderRequest
	if !bind(c, &req) {
		return
	}
	mapping, ok := req.mapping(c)
	if !ok {
		return
	}
	tpl, err := h.templates.ReorderProducts(c.Request.Context(), id, mapping)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpl)
}

// Apply handles POST /api/v1/quote-templates/:id/apply
func (h *QuoteTemplateHandler) Apply(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ApplyQuoteTemplateRequest
	if !bind(c, &req) {
		return
	}
	quote, err := h.templates.ApplyToEvent(c.Request.Context(), id, req.EventID, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, quote)
}
