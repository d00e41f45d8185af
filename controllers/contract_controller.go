package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
	"github.com/kendall-kelly/eventflow-api/utils"
)

type CreateContractTemplateRequest struct {
	Name         string `json:"name" binding:"required"`
	Content      string `json:"content" binding:"required"`
	ValidityDays int    `json:"validity_days" binding:"gte=0"`
}

type CreateContractRequest struct {
	TemplateID uint `json:"template_id" binding:"required"`
}

type ContractStatusRequest struct {
	Status models.ContractStatus `json:"status" binding:"required"`
}

// SignContractRequest is the JSON form of a signature. Multipart requests
// carry the same fields plus an optional "document" PDF.
type SignContractRequest struct {
	SignerName string `json:"signer_name" form:"signer_name" binding:"required"`
	Signature  string `json:"signature" form:"signature"`
}

type ContractHandler struct {
	actorResolver
	contracts *services.ContractService
}

func NewContractHandler(contracts *services.ContractService, users *services.UserService) *ContractHandler {
	return &ContractHandler{actorResolver: actorResolver{users: users}, contracts: contracts}
}

// contractView adds the download path of the signed document, if any.
func contractView(contract *models.EventContract) gin.H {
	view := gin.H{"contract": contract}
	if contract.DocumentKey != nil {
		view["document_path"] = utils.DocumentDownloadPath(contract.ID)
	}
	return view
}

// CreateTemplate handles POST /api/v1/contract-templates
func (h *ContractHandler) CreateTemplate(c *gin.Context) {
	var req CreateContractTemplateRequest
	if !bind(c, &req) {
		return
	}
	tpl, err := h.contracts.CreateTemplate(c.Request.Context(), req.Name, req.Content, req.ValidityDays)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, tpl)
}

// ListTemplates handles GET /api/v1/contract-templates
func (h *ContractHandler) ListTemplates(c *gin.Context) {
	tpls, err := h.contracts.ListTemplates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, tpls)
}

// CreateContract handles POST /api/v1/events/:id/contracts
func (h *ContractHandler) CreateContract(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateContractRequest
	if !bind(c, &req) {
		return
	}
	contract, err := h.contracts.CreateContract(c.Request.Context(), eventID, req.TemplateID, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, contractView(contract))
}

// ListContracts handles GET /api/v1/events/:id/contracts
func (h *ContractHandler) ListContracts(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	contracts, err := h.contracts.ListContracts(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, contracts)
}

// GetContract handles GET /api/v1/contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	contract, err := h.contracts.GetContract(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, contractView(contract))
}

// SetStatus handles PATCH /api/v1/contracts/:id/status for every transition
// except signing.
func (h *ContractHandler) SetStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ContractStatusRequest
	if !bind(c, &req) {
		return
	}
	contract, err := h.contracts.Transition(c.Request.Context(), id, req.Status, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, contractView(contract))
}

// Sign handles POST /api/v1/contracts/:id/sign as JSON or multipart form.
func (h *ContractHandler) Sign(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req SignContractRequest
	if err := c.ShouldBind(&req); err != nil {
		respondValidation(c, err)
		return
	}
	sign := services.SignRequest{SignerName: req.SignerName, Signature: req.Signature}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("document")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			c.JSON(http.StatusBadRequest, errorBody("INVALID_REQUEST", "Could not read the uploaded document"))
			return
		default:
			data, err := utils.ReadDocument(fileHeader)
			if err != nil {
				writeUploadError(c, err)
				return
			}
			sign.Document = data
			sign.DocumentContentType = utils.DocumentContentType
		}
	}

	contract, err := h.contracts.SignContract(c.Request.Context(), id, sign, h.actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, contractView(contract))
}

// Document handles GET /api/v1/contracts/:id/document with a temporary
// download link.
func (h *ContractHandler) Document(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	url, err := h.contracts.DocumentURL(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"url": url})
}

func writeUploadError(c *gin.Context, err error) {
	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		c.JSON(http.StatusBadRequest, errorBody(uploadErr.Code, uploadErr.Message))
		return
	}
	respondError(c, err)
}
