// Package identity resolves the calling principal from a bearer credential.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

const cacheKeyPrefix = "identity:principal:"

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RoleCache memoises resolved principals. The service.CacheService satisfies it.
type RoleCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Config controls token validation.
type Config struct {
	Secret   string
	Issuer   string
	CacheTTL time.Duration
}

// Resolver turns access tokens into principals. The role always comes from the users table,
// read at most CacheTTL ago; user rows are not written by this service, so changes made to
// them elsewhere take effect when the cached entry expires.
type Resolver struct {
	users  userLookup
	cache  RoleCache
	cfg    Config
	logger *zap.Logger
}

// NewResolver constructs a Resolver. cache may be nil.
func NewResolver(users userLookup, cache RoleCache, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, cache: cache, cfg: cfg, logger: logger}
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthenticated, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthenticated, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// ResolveHeader is ParseBearer followed by Resolve.
func (r *Resolver) ResolveHeader(ctx context.Context, header string) (models.Principal, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return models.Principal{}, err
	}
	return r.Resolve(ctx, token)
}

// Resolve validates token and loads the principal's current role.
func (r *Resolver) Resolve(ctx context.Context, token string) (models.Principal, error) {
	claims, err := r.parse(token)
	if err != nil {
		return models.Principal{}, err
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthenticated, "token has no subject")
	}

	key := cacheKeyPrefix + userID
	if r.cache != nil {
		var cached models.Principal
		hit, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.Warn("principal cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		if hit && cached.ID == userID && cached.Role.Valid() {
			return cached, nil
		}
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthenticated, "unknown principal")
		}
		return models.Principal{}, appErrors.Store(err, "failed to load principal")
	}
	if !user.Active {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthenticated, "account is inactive")
	}
	if !user.Role.Valid() {
		return models.Principal{}, appErrors.Clone(appErrors.ErrUnauthenticated, "principal has no valid role")
	}

	principal := models.Principal{ID: user.ID, Role: user.Role}
	if r.cache != nil && r.cfg.CacheTTL > 0 {
		if err := r.cache.Set(ctx, key, principal, r.cfg.CacheTTL); err != nil {
			r.logger.Warn("principal cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return principal, nil
}

func (r *Resolver) parse(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthenticated.Code, appErrors.ErrUnauthenticated.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid token claims")
	}
	return claims, nil
}
