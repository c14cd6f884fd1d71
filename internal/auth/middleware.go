package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/models"
)

const actorKey = "partline.actor"

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"message": msg, "code": code},
	})
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth resolves the bearer token into an Actor stored on the context.
// Missing or invalid tokens get 401.
func RequireAuth(s *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		actor, err := s.Authenticate(tok)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInactiveUser):
			abort(c, http.StatusUnauthorized, "unauthorized", "could not validate credentials")
			return
		default:
			abort(c, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole allows only actors holding one of roles. It must run after
// RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor == nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
			return
		}
		if !actor.HasRole(roles...) {
			abort(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated actor, or nil.
func ActorFrom(c *gin.Context) *models.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	a, _ := v.(*models.Actor)
	return a
}
