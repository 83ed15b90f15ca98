package middleware

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
	"github.com/cleanly/booking-api/pkg/auth"
	"github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/httputil"
)

const ContextActor = "actor"

// CompanyLookup resolves the company a COMPANY user owns.
type CompanyLookup interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Company, error)
}

type AuthMiddleware struct {
	tokens    auth.JWTService
	companies CompanyLookup
}

func NewAuthMiddleware(tokens auth.JWTService, companies CompanyLookup) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:    tokens,
		companies: companies,
	}
}

// Authenticate verifies the bearer token and stores the resolved actor.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.AbortWithError(c, errors.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.AbortWithError(c, errors.Unauthorized("invalid authorization format"))
			return
		}

		claims, err := m.tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.AbortWithError(c, errors.Unauthorized("invalid token"))
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.AbortWithError(c, errors.Unauthorized("invalid token subject"))
			return
		}
		role, ok := model.ParseRole(claims.Role)
		if !ok {
			httputil.AbortWithError(c, errors.Unauthorized("unknown role"))
			return
		}

		actor := model.Actor{UserID: userID, Role: role}
		if role == model.RoleCompany {
			company, err := m.companies.GetByOwner(c.Request.Context(), userID)
			switch {
			case err == nil:
				actor.CompanyID = &company.ID
			case stderrors.Is(err, repository.ErrNotFound):
			default:
				httputil.AbortWithError(c, errors.Internal(err))
				return
			}
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

// RequireRoles rejects actors whose role is not listed.
func (m *AuthMiddleware) RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			httputil.AbortWithError(c, errors.Unauthorized("authentication required"))
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		httputil.AbortWithError(c, errors.Forbidden("role not permitted"))
	}
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
