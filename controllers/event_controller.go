package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

type CreateEventRequest struct {
	Name               string     `json:"name" binding:"required"`
	ClientID           *uint      `json:"client_id"`
	EventDate          *time.Time `json:"event_date"`
	WorkflowTemplateID *uint      `json:"workflow_template_id"`
}

type SetEventStatusRequest struct {
	Status models.EventStatus `json:"status" binding:"required"`
}

type ApplyStageRequest struct {
	StageID uint `json:"stage_id" binding:"required"`
}

type EventHandler struct {
	actorResolver
	events    *services.EventService
	workflows *services.WorkflowService
}

func NewEventHandler(events *services.EventService, workflows *services.WorkflowService, users *services.UserService) *EventHandler {
	return &EventHandler{actorResolver: actorResolver{users: users}, events: events, workflows: workflows}
}

// CreateEvent handles POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if !bind(c, &req) {
		return
	}
	event, err := h.events.CreateEvent(c.Request.Context(), services.CreateEventRequest{
		Name:               req.Name,
		ClientID:           req.ClientID,
		EventDate:          req.EventDate,
		WorkflowTemplateID: req.WorkflowTemplateID,
	}, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, event)
}

// ListEvents handles GET /api/v1/events?status=
func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.events.ListEvents(c.Request.Context(), models.EventStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, events)
}

// GetEvent handles GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	event, err := h.events.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, event)
}

// SetStatus handles PATCH /api/v1/events/:id/status
func (h *EventHandler) SetStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req SetEventStatusRequest
	if !bind(c, &req) {
		return
	}
	event, err := h.events.SetStatus(c.Request.Context(), id, req.Status, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, event)
}

// ApplyStage handles POST /api/v1/events/:id/stage
func (h *EventHandler) ApplyStage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ApplyStageRequest
	if !bind(c, &req) {
		return
	}
	event, err := h.workflows.ApplyStage(c.Request.Context(), id, req.StageID, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, event)
}

// Timeline handles GET /api/v1/events/:id/timeline
func (h *EventHandler) Timeline(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.events.Timeline(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

// Activities handles GET /api/v1/events/:id/activities
func (h *EventHandler) Activities(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	activities, err := h.events.Activities(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, activities)
}
