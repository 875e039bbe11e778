package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-gate-api/internal/identity"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the resolved principal.
const ContextPrincipalKey = "currentPrincipal"

type principalResolver interface {
	ResolveHeader(ctx context.Context, header string) (models.Principal, error)
}

// Authenticate resolves the bearer token into a principal and attaches it to both the gin
// context and the request context. Requests without a valid credential stop here.
func Authenticate(resolver principalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := resolver.ResolveHeader(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		ctx, err := identity.WithPrincipal(c.Request.Context(), principal)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFromGin returns the principal set by Authenticate.
func PrincipalFromGin(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return identity.PrincipalFrom(c.Request.Context())
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}
