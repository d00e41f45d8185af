package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/config"
	"github.com/kendall-kelly/eventflow-api/middleware"
	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidTransition, services.KindConstraintViolation, services.KindValidation:
		return http.StatusBadRequest
	case services.KindExternalDependency:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondError writes the error envelope. Errors that are not service errors
// are logged and reported without their message.
func respondError(c *gin.Context, err error) {
	var se *services.Error
	if errors.As(err, &se) {
		c.JSON(statusFor(se.Kind), errorBody(se.Code, se.Message))
		return
	}
	config.Logger().Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "An unexpected error occurred"))
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// parseID reads a positive integer path parameter. It writes the error
// response itself and reports whether the handler may continue.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_ID", "Invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// bind decodes the JSON body into req, writing a validation error on failure.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondValidation(c, err)
		return false
	}
	return true
}

// actorResolver maps the authenticated subject of a request to an actor.
type actorResolver struct {
	users *services.UserService
}

func (r actorResolver) actor(c *gin.Context) models.Actor {
	auth0ID, _ := middleware.GetUserID(c)
	name := middleware.GetCustomClaims(c).Name
	if r.users == nil {
		if name == "" {
			name = auth0ID
		}
		if name == "" {
			return models.SystemActor
		}
		return models.Actor{Name: name}
	}
	return r.users.ActorFor(c.Request.Context(), auth0ID, name)
}

type MoveRequest struct {
	Order int `json:"order" binding:"required,gte=1"`
}

type ReorderItem struct {
	ID    uint `json:"id" binding:"required"`
	Order int  `json:"order" binding:"required,gte=1"`
}

type ReorderRequest struct {
	Items []ReorderItem `json:"items" binding:"required,min=1,dive"`
}

// mapping converts the requested positions to an id keyed map. A repeated
// id is rejected since only one position can win.
func (r ReorderRequest) mapping(c *gin.Context) (map[uint]int, bool) {
	out := make(map[uint]int, len(r.Items))
	for _, item := range r.Items {
		if _, dup := out[item.ID]; dup {
			c.JSON(http.StatusBadRequest, errorBody("VALIDATION_ERROR", "Duplicate id "+strconv.FormatUint(uint64(item.ID), 10)))
			return nil, false
		}
		out[item.ID] = item.Order
	}
	return out, true
}
