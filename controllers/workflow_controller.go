package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

type CreateWorkflowTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CreateStageRequest struct {
	Stage                    models.StageType `json:"stage" binding:"required"`
	Name                     string           `json:"name" binding:"required"`
	Description              string           `json:"description"`
	Order                    *int             `json:"order" binding:"omitempty,gte=1"`
	TriggerOnPaymentReceived bool             `json:"trigger_on_payment_received"`
	AdvancementCriteria      string           `json:"advancement_criteria"`
}

type UpdateStageRequest struct {
	Name                     *string           `json:"name"`
	Description              *string           `json:"description"`
	Stage                    *models.StageType `json:"stage"`
	Order                    *int              `json:"order" binding:"omitempty,gte=1"`
	TriggerOnPaymentReceived *bool             `json:"trigger_on_payment_received"`
	AdvancementCriteria      *string           `json:"advancement_criteria"`
}

type ReorderStagesRequest struct {
	ReorderRequest
	Stage models.StageType `json:"stage" binding:"required"`
}

type WorkflowHandler struct {
	actorResolver
	workflows *services.WorkflowService
}

func NewWorkflowHandler(workflows *services.WorkflowService, users *services.UserService) *WorkflowHandler {
	return &WorkflowHandler{actorResolver: actorResolver{users: users}, workflows: workflows}
}

// CreateTemplate handles POST /api/v1/workflow-templates
func (h *WorkflowHandler) CreateTemplate(c *gin.Context) {
	var req CreateWorkflowTemplateRequest
	if !bind(c, &req) {
		return
	}
	tpl, err := h.workflows.CreateTemplate(c.Request.Context(), services.CreateTemplateRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, tpl)
}

// ListTemplates handles GET /api/v1/workflow-templates
func (h *WorkflowHandler) ListTemplates(c *gin.Context) {
	tpls, err := h.workflows.ListTemplates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpls)
}

// GetTemplate handles GET /api/v1/workflow-templates/:id
func (h *WorkflowHandler) GetTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tpl, err := h.workflows.GetTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpl)
}

// DeleteTemplate handles DELETE /api/v1/workflow-templates/:id
func (h *WorkflowHandler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.workflows.DeleteTemplate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// CreateStage handles POST /api/v1/workflow-templates/:id/stages
func (h *WorkflowHandler) CreateStage(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateStageRequest
	if !bind(c, &req) {
		return
	}
	stage, err := h.workflows.CreateStage(c.Request.Context(), templateID, services.StageInput{
		Stage:                    req.Stage,
		Name:                     req.Name,
		Description:              req.Description,
		Order:                    req.Order,
		TriggerOnPaymentReceived: req.TriggerOnPaymentReceived,
		AdvancementCriteria:      req.AdvancementCriteria,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, stage)
}

// UpdateStage handles PATCH /api/v1/workflow-stages/:id
func (h *WorkflowHandler) UpdateStage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateStageRequest
	if !bind(c, &req) {
		return
	}
	stage, err := h.workflows.UpdateStage(c.Request.Context(), id, services.UpdateStageRequest{
		Name:                     req.Name,
		Description:              req.Description,
		Stage:                    req.Stage,
		Order:                    req.Order,
		TriggerOnPaymentReceived: req.TriggerOnPaymentReceived,
		AdvancementCriteria:      req.AdvancementCriteria,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stage)
}

// DeleteStage handles DELETE /api/v1/workflow-stages/:id
func (h *WorkflowHandler) DeleteStage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.workflows.DeleteStage(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// MoveStage handles POST /api/v1/workflow-stages/:id/move
func (h *WorkflowHandler) MoveStage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MoveRequest
	if !bind(c, &req) {
		return
	}
	stage, err := h.workflows.MoveStage(c.Request.Context(), id, req.Order)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stage)
}

// ReorderStages handles POST /api/v1/workflow-templates/:id/stages/reorder
func (h *WorkflowHandler) ReorderStages(c *gin.Context) {
	templateID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ReorderStagesRequest
	if !bind(c, &req) {
		return
	}
	mapping, ok := req.mapping(c)
	if !ok {
		return
	}
	stages, err := h.workflows.ReorderStages(c.Request.Context(), templateID, req.Stage, mapping)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stages)
}
