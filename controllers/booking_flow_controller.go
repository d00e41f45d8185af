package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

type AddBookingItemRequest struct {
	Kind      models.BookingItemKind `json:"kind" binding:"required"`
	ProductID uint                   `json:"product_id" binding:"required"`
	Order     *int                   `json:"order" binding:"omitempty,gte=1"`
}

type ReorderBookingItemsRequest struct {
	ReorderRequest
	Kind models.BookingItemKind `json:"kind" binding:"required"`
}

type BookingFlowHandler struct {
	flows *services.BookingFlowService
}

func NewBookingFlowHandler(flows *services.BookingFlowService) *BookingFlowHandler {
	return &BookingFlowHandler{flows: flows}
}

// CreateFlow handles POST /api/v1/booking-flows
func (h *BookingFlowHandler) CreateFlow(c *gin.Context) {
	var req services.CreateBookingFlowRequest
	if !bind(c, &req) {
		return
	}
	flow, err := h.flows.CreateFlow(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, flow)
}

// ListFlows handles GET /api/v1/booking-flows
func (h *BookingFlowHandler) ListFlows(c *gin.Context) {
	flows, err := h.flows.ListFlows(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, flows)
}

// GetFlow handles GET /api/v1/booking-flows/:id
func (h *BookingFlowHandler) GetFlow(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	flow, err := h.flows.GetFlow(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, flow)
}

// DeleteFlow handles DELETE /api/v1/booking-flows/:id
func (h *BookingFlowHandler) DeleteFlow(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.flows.DeleteFlow(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// AddItem handles POST /api/v1/booking-flows/:id/items
func (h *BookingFlowHandler) AddItem(c *gin.Context) {
	flowID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AddBookingItemRequest
	if !bind(c, &req) {
		return
	}
	kind := models.BookingItemKind(strings.ToUpper(string(req.Kind)))
	item, err := h.flows.AddItem(c.Request.Context(), flowID, kind, req.ProductID, req.Order)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, item)
}

// RemoveItem handles DELETE /api/v1/booking-flow-items/:id
func (h *BookingFlowHandler) RemoveItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.flows.RemoveItem(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// MoveItem handles POST /api/v1/booking-flow-items/:id/move
func (h *BookingFlowHandler) MoveItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MoveRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.flows.MoveItem(c.Request.Context(), id, req.Order)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, item)
}

// ReorderItems handles POST /api/v1/booking-flows/:id/items/reorder
func (h *BookingFlowHandler) ReorderItems(c *gin.Context) {
	flowID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ReorderBookingItemsRequest
	if !bind(c, &req) {
		return
	}
	mapping, ok := req.mapping(c)
	if !ok {
		return
	}
	kind := models.BookingItemKind(strings.ToUpper(string(req.Kind)))
	items, err := h.flows.ReorderItems(c.Request.Context(), flowID, kind, mapping)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}
