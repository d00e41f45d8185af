package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

type CreateClientRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

type UpdateClientRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone"`
}

type NoteRequest struct {
	Body string `json:"body" binding:"required"`
}

type DiscountRequest struct {
	Code       string              `json:"code"`
	Type       models.DiscountType `json:"type"`
	Value      *decimal.Decimal    `json:"value"`
	ValidFrom  *time.Time          `json:"valid_from"`
	ValidUntil *time.Time          `json:"valid_until"`
	IsActive   *bool               `json:"is_active"`
}

func (r DiscountRequest) input() services.DiscountInput {
	in := services.DiscountInput{
		Code:       r.Code,
		Type:       models.DiscountType(strings.ToUpper(string(r.Type))),
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		IsActive:   r.IsActive,
	}
	if r.Value != nil {
		in.Value = *r.Value
	}
	return in
}

type ProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	IsActive    *bool            `json:"is_active"`
}

func (r ProductRequest) input() services.ProductInput {
	return services.ProductInput{Name: r.Name, Description: r.Description, BasePrice: r.BasePrice, IsActive: r.IsActive}
}

// CRMHandler serves clients and their invitations, notes, discount codes
// and the product catalog.
type CRMHandler struct {
	actorResolver
	clients   *services.ClientService
	notes     *services.NoteService
	discounts *services.DiscountService
	products  *services.ProductService
}

func NewCRMHandler(clients *services.ClientService, notes *services.NoteService, discounts *services.DiscountService, products *services.ProductService, users *services.UserService) *CRMHandler {
	return &CRMHandler{
		actorResolver: actorResolver{users: users},
		clients:       clients,
		notes:         notes,
		discounts:     discounts,
		products:      products,
	}
}

// CreateClient handles POST /api/v1/clients
func (h *CRMHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if !bind(c, &req) {
		return
	}
	client, err := h.clients.CreateClient(c.Request.Context(), services.CreateClientRequest{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, client)
}

// ListClients handles GET /api/v1/clients?search=
func (h *CRMHandler) ListClients(c *gin.Context) {
	clients, err := h.clients.ListClients(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, clients)
}

// GetClient handles GET /api/v1/clients/:id
func (h *CRMHandler) GetClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	client, err := h.clients.GetClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, client)
}

// UpdateClient handles PATCH /api/v1/clients/:id
func (h *CRMHandler) UpdateClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateClientRequest
	if !bind(c, &req) {
		return
	}
	client, err := h.clients.UpdateClient(c.Request.Context(), id, services.UpdateClientRequest{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, client)
}

// DeleteClient handles DELETE /api/v1/clients/:id
func (h *CRMHandler) DeleteClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.clients.DeleteClient(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// InviteClient handles POST /api/v1/clients/:id/invitations
func (h *CRMHandler) InviteClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	invitation, err := h.clients.InviteClient(c.Request.Context(), id, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, invitation)
}

// ListInvitations handles GET /api/v1/clients/:id/invitations
func (h *CRMHandler) ListInvitations(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	invitations, err := h.clients.ListInvitations(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invitations)
}

// AcceptInvitation handles POST /api/v1/invitations/:token/accept
func (h *CRMHandler) AcceptInvitation(c *gin.Context) {
	invitation, err := h.clients.AcceptInvitation(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invitation)
}

// CreateNote returns the handler for POST /api/v1/<targets>/:id/notes.
func (h *CRMHandler) CreateNote(kind models.NoteTargetKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req NoteRequest
		if !bind(c, &req) {
			return
		}
		note, err := h.notes.CreateNote(c.Request.Context(), kind, targetID, req.Body, h.actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusCreated, note)
	}
}

// ListNotes returns the handler for GET /api/v1/<targets>/:id/notes.
func (h *CRMHandler) ListNotes(kind models.NoteTargetKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, ok := parseID(c, "id")
		if !ok {
			return
		}
		notes, err := h.notes.ListNotes(c.Request.Context(), kind, targetID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, notes)
	}
}

// UpdateNote handles PATCH /api/v1/notes/:id
func (h *CRMHandler) UpdateNote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req NoteRequest
	if !bind(c, &req) {
		return
	}
	note, err := h.notes.UpdateNote(c.Request.Context(), id, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/v1/notes/:id
func (h *CRMHandler) DeleteNote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.notes.DeleteNote(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// CreateDiscount handles POST /api/v1/discount-codes
func (h *CRMHandler) CreateDiscount(c *gin.Context) {
	var req DiscountRequest
	if !bind(c, &req) {
		return
	}
	discount, err := h.discounts.CreateDiscount(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, discount)
}

// ListDiscounts handles GET /api/v1/discount-codes?active=true
func (h *CRMHandler) ListDiscounts(c *gin.Context) {
	discounts, err := h.discounts.ListDiscounts(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, discounts)
}

// GetDiscount handles GET /api/v1/discount-codes/:id
func (h *CRMHandler) GetDiscount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	discount, err := h.discounts.GetDiscount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, discount)
}

// UpdateDiscount handles PATCH /api/v1/discount-codes/:id
func (h *CRMHandler) UpdateDiscount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req DiscountRequest
	if !bind(c, &req) {
		return
	}
	discount, err := h.discounts.UpdateDiscount(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, discount)
}

// DeleteDiscount handles DELETE /api/v1/discount-codes/:id
func (h *CRMHandler) DeleteDiscount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.discounts.DeleteDiscount(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// LookupDiscount handles GET /api/v1/discount-codes/lookup/:code
func (h *CRMHandler) LookupDiscount(c *gin.Context) {
	discount, err := h.discounts.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, discount)
}

// CreateProduct handles POST /api/v1/products
func (h *CRMHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if !bind(c, &req) {
		return
	}
	product, err := h.products.CreateProduct(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, product)
}

// ListProducts handles GET /api/v1/products?active=true
func (h *CRMHandler) ListProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, products)
}

// GetProduct handles GET /api/v1/products/:id
func (h *CRMHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, product)
}

// UpdateProduct handles PATCH /api/v1/products/:id
func (h *CRMHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !bind(c, &req) {
		return
	}
	product, err := h.products.UpdateProduct(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/:id
func (h *CRMHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.products.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}
