package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-task-manager/internal/application"
	"github.com/oksasatya/go-task-manager/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"
)

// Identifier resolves a bearer token to the caller; *application.AuthService
// implements it.
type Identifier interface {
	Identify(token string) (*application.Identity, error)
}

// Auth validates the bearer access token and sets userID and userEmail in
// the Gin context on success. Identity is never taken from the body or path.
func Auth(ident Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		id, err := ident.Identify(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		c.Set(CtxUserIDKey, id.UserID)
		c.Set(CtxUserEmailKey, id.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
