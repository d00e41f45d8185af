package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

type CreateQuestionnaireRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CreateFieldRequest struct {
	Name      string           `json:"name" binding:"required"`
	Label     string           `json:"label" binding:"required"`
	FieldType models.FieldType `json:"field_type"`
	Required  bool             `json:"required"`
	Options   string           `json:"options"`
	Order     *int             `json:"order" binding:"omitempty,gte=1"`
}

type UpdateFieldRequest struct {
	Name      *string           `json:"name"`
	Label     *string           `json:"label"`
	FieldType *models.FieldType `json:"field_type"`
	Required  *bool             `json:"required"`
	Options   *string           `json:"options"`
	Order     *int              `json:"order" binding:"omitempty,gte=1"`
}

type QuestionnaireHandler struct {
	questionnaires *services.QuestionnaireService
}

func NewQuestionnaireHandler(questionnaires *services.QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaires: questionnaires}
}

// CreateQuestionnaire handles POST /api/v1/questionnaires
func (h *QuestionnaireHandler) CreateQuestionnaire(c *gin.Context) {
	var req CreateQuestionnaireRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.questionnaires.CreateQuestionnaire(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, q)
}

// ListQuestionnaires handles GET /api/v1/questionnaires
func (h *QuestionnaireHandler) ListQuestionnaires(c *gin.Context) {
	qs, err := h.questionnaires.ListQuestionnaires(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, qs)
}

// GetQuestionnaire handles GET /api/v1/questionnaires/:id
func (h *QuestionnaireHandler) GetQuestionnaire(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	q, err := h.questionnaires.GetQuestionnaire(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

// DeleteQuestionnaire handles DELETE /api/v1/questionnaires/:id
func (h *QuestionnaireHandler) DeleteQuestionnaire(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.questionnaires.DeleteQuestionnaire(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// CreateField handles POST /api/v1/questionnaires/:id/fields
func (h *QuestionnaireHandler) CreateField(c *gin.Context) {
	questionnaireID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateFieldRequest
	if !bind(c, &req) {
		return
	}
	fieldType := req.FieldType
	if fieldType == "" {
		fieldType = models.FieldText
	}
	field, err := h.questionnaires.CreateField(c.Request.Context(), questionnaireID, services.FieldInput{
		Name:      req.Name,
		Label:     req.Label,
		FieldType: fieldType,
		Required:  req.Required,
		Options:   req.Options,
		Order:     req.Order,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, field)
}

// UpdateField handles PATCH /api/v1/questionnaire-fields/:id
func (h *QuestionnaireHandler) UpdateField(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateFieldRequest
	if !bind(c, &req) {
		return
	}
	field, err := h.questionnaires.UpdateField(c.Request.Context(), id, services.UpdateFieldRequest{
		Name:      req.Name,
		Label:     req.Label,
		FieldType: req.FieldType,
		Required:  req.Required,
		Options:   req.Options,
		Order:     req.Order,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, field)
}

// DeleteField handles DELETE /api/v1/questionnaire-fields/:id
func (h *QuestionnaireHandler) DeleteField(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.questionnaires.DeleteField(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": id})
}

// MoveField handles POST /api/v1/questionnaire-fields/:id/move
func (h *QuestionnaireHandler) MoveField(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MoveRequest
	if !bind(c, &req) {
		return
	}
	field, err := h.questionnaires.MoveField(c.Request.Context(), id, req.Order)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, field)
}

// ReorderFields handles POST /api/v1/questionnaires/:id/fields/reorder
func (h *QuestionnaireHandler) ReorderFields(c *gin.Context) {
	questionnaireID, ok := parseID(c, "id")
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
	fields, err := h.questionnaires.ReorderFields(c.Request.Context(), questionnaireID, mapping)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, fields)
}
