package testutil

import (
	"net/http"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/eventflow-api/middleware"
)

// TestIssuer is the issuer placed on mock tokens.
const TestIssuer = "https://test.auth0.com/"

// MockValidatedClaims creates the claims the JWT middleware would produce
// for a staff member with role.
func MockValidatedClaims(subject, role, name string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  TestIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
			Name:  name,
		},
	}
}

// SetMockAuthContext populates c the way EnsureValidToken does.
func SetMockAuthContext(c *gin.Context, subject, role, name, accessToken string, scopes ...string) {
	c.Set(middleware.ContextUserID, subject)
	c.Set(middleware.ContextAccessToken, accessToken)
	c.Set(middleware.ContextClaims, MockValidatedClaims(subject, role, name, scopes))
}

// MockAuth replaces EnsureValidToken in router tests. Requests without an
// Authorization header are rejected with 401; the rest act as subject with
// the given scopes.
func MockAuth(subject, role, name string, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_TOKEN", "message": "Failed to validate JWT."},
			})
			return
		}
		SetMockAuthContext(c, subject, role, name, strings.TrimPrefix(header, "Bearer "), scopes...)
		c.Next()
	}
}
