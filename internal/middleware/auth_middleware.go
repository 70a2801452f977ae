package middleware

import (
	"context"
	"net/http"
	"strings"

	"taskflow/internal/apperror"
	"taskflow/internal/model"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey    = "userID"
	PrincipalKey = "principal"
)

// PrincipalResolver turns a raw bearer token into the acting principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, rawToken string) (model.Principal, error)
}

// JWTAuthMiddleware resolves the bearer token and stores the principal in the
// gin context. EventSource clients cannot set headers, so the token may also
// come in the access_token query parameter.
func JWTAuthMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var token string
		switch {
		case authHeader != "":
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				abortUnauthenticated(c, "Authorization header format must be Bearer {token}")
				return
			}
			token = parts[1]
		case c.Query("access_token") != "":
			token = c.Query("access_token")
		default:
			abortUnauthenticated(c, "Authorization header is required")
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if apperror.KindOf(err) == apperror.KindUnauthenticated {
				abortUnauthenticated(c, apperror.Message(err))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{
				"code":    apperror.KindStore.String(),
				"message": "Failed to resolve session",
			}})
			return
		}

		c.Set(UserIDKey, principal.ID)
		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by JWTAuthMiddleware.
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"code":    apperror.KindUnauthenticated.String(),
		"message": msg,
	}})
}
