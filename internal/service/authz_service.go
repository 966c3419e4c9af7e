package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type actorFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// permissionChecker is the authorization surface used by the other services.
type permissionChecker interface {
	RequirePermission(ctx context.Context, actorID string, perm rbac.Permission) (*models.User, error)
	RequireRole(ctx context.Context, actorID string, role models.UserRole) (*models.User, error)
}

// AuthzService resolves the acting user and checks role and permission requirements.
type AuthzService struct {
	users actorFinder
}

// NewAuthzService constructs an AuthzService.
func NewAuthzService(users actorFinder) *AuthzService {
	return &AuthzService{users: users}
}

// RequirePermission loads the active actor and verifies the role grants perm.
func (s *AuthzService) RequirePermission(ctx context.Context, actorID string, perm rbac.Permission) (*models.User, error) {
	actor, err := s.activeActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(actor.Role, perm) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("missing permission %s", perm))
	}
	return actor, nil
}

// RequireRole loads the active actor and verifies its role ranks at least role.
func (s *AuthzService) RequireRole(ctx context.Context, actorID string, role models.UserRole) (*models.User, error) {
	actor, err := s.activeActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasRole(actor.Role, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("requires role %s", role))
	}
	return actor, nil
}

func (s *AuthzService) activeActor(ctx context.Context, actorID string) (*models.User, error) {
	if actorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authenticated")
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load actor")
	}
	if !actor.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	return actor, nil
}
