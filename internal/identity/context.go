package identity

import (
	"context"
	"fmt"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

type principalKey struct{}

// WithPrincipal attaches p to ctx. A context carries at most one principal: attaching the
// same principal again is a no-op, attaching a different one fails.
func WithPrincipal(ctx context.Context, p models.Principal) (context.Context, error) {
	if existing, ok := PrincipalFrom(ctx); ok {
		if existing != p {
			return ctx, appErrors.Clone(appErrors.ErrPrincipalConflict,
				fmt.Sprintf("principal conflict: existing=%s new=%s", existing, p))
		}
		return ctx, nil
	}
	return context.WithValue(ctx, principalKey{}, p), nil
}

// PrincipalFrom reads the principal attached to ctx.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}
