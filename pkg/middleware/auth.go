package middleware

import (
	"net/http"
	"strings"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

type TokenVerifier interface {
	Verify(raw string) (domain.Actor, error)
}

// Auth requires a valid bearer token and stores the caller on the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		actor, err := verifier.Verify(strings.TrimSpace(raw))
		if err != nil {
			_ = c.Error(err)
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !actor.IsAdmin() {
			abort(c, http.StatusForbidden, domain.ErrAccessDenied.Message)
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": false, "message": message})
}
