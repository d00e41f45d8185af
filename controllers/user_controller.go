package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/middleware"
	"github.com/kendall-kelly/eventflow-api/services"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// CreateUser handles POST /api/v1/users - provisions the caller's staff
// profile from their Auth0 profile.
func (h *UserHandler) CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Could not extract user ID from token"))
		return
	}
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("MISSING_TOKEN", "Access token not found"))
		return
	}

	user, err := h.users.Provision(c.Request.Context(), auth0ID, accessToken, middleware.GetCustomClaims(c).Role)
	if err != nil {
		var se *services.Error
		if errors.As(err, &se) && se.Code == "USER_EXISTS" {
			c.JSON(http.StatusConflict, errorBody(se.Code, se.Message))
			return
		}
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me
func (h *UserHandler) GetMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Could not extract user information"))
		return
	}
	user, err := h.users.GetByAuth0ID(c.Request.Context(), auth0ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me
func (h *UserHandler) UpdateMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("UNAUTHORIZED", "Could not extract user information"))
		return
	}
	var req UpdateUserRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), auth0ID, services.UpdateUserRequest{Name: req.Name, Email: req.Email})
	if err != nil {
		var se *services.Error
		if errors.As(err, &se) && se.Code == "EMAIL_EXISTS" {
			c.JSON(http.StatusConflict, errorBody(se.Code, se.Message))
			return
		}
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}
