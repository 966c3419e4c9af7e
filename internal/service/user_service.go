package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
}

// UserService manages journal accounts.
type UserService struct {
	repo   userStore
	authz  permissionChecker
	audit  auditRecorder
	tx     txRunner
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userStore, authz permissionChecker, audit auditRecorder, tx txRunner, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, authz: authz, audit: audit, tx: tx, logger: logger}
}

// SyncCurrentUser returns the account of identity, creating an active AUTHOR on first sign-in.
func (s *UserService) SyncCurrentUser(ctx context.Context, identity models.Identity) (*models.User, error) {
	if identity.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "identity has no subject")
	}
	user, err := s.repo.FindByID(ctx, identity.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appError(err, "failed to load user")
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, validationError("identity has no email")
	}
	user = &models.User{
		ID:       identity.ID,
		Email:    email,
		FullName: strings.TrimSpace(identity.FullName),
		Role:     models.RoleAuthor,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// created by a concurrent request
			existing, findErr := s.repo.FindByID(ctx, identity.ID)
			if findErr != nil {
				return nil, appError(findErr, "failed to load user")
			}
			return existing, nil
		}
		return nil, appError(err, "failed to create user")
	}
	s.logger.Info("user provisioned", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// List returns users matching filter.
func (s *UserService) List(ctx context.Context, actorID string, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if _, err := s.authz.RequirePermission(ctx, actorID, rbac.PermUserRead); err != nil {
		return nil, nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, validationError("unknown role " + string(*filter.Role))
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appError(err, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateRole changes the role of another, non-DEAN user. The DEAN role itself is never granted here.
func (s *UserService) UpdateRole(ctx context.Context, actorID, userID string, role models.UserRole) (*models.User, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermUserUpdateRole)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, validationError("unknown role " + string(role))
	}
	if role == models.RoleDean {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "the dean role cannot be assigned")
	}
	target, err := s.manageableTarget(ctx, actor, userID, "change your own role")
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}

	var updated *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdateRole(ctx, target.ID, role)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrForbidden, "the dean's role cannot be changed")
			}
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionUpdateUserRole,
			TargetID:   target.ID,
			TargetType: models.AuditTargetUser,
			Actor:      actor,
			Metadata:   map[string]interface{}{"from": target.Role, "to": role, "email": target.Email},
		})
	})
	if err != nil {
		return nil, appError(err, "failed to update user role")
	}
	return updated, nil
}

// ToggleActive flips the activation flag of another, non-DEAN user.
func (s *UserService) ToggleActive(ctx context.Context, actorID, userID string) (*models.User, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermUserToggleActive)
	if err != nil {
		return nil, err
	}
	target, err := s.manageableTarget(ctx, actor, userID, "deactivate yourself")
	if err != nil {
		return nil, err
	}

	var updated *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.SetActive(ctx, target.ID, !target.IsActive)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrForbidden, "the dean cannot be deactivated")
			}
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionToggleUserActive,
			TargetID:   target.ID,
			TargetType: models.AuditTargetUser,
			Actor:      actor,
			Metadata:   map[string]interface{}{"is_active": !target.IsActive, "email": target.Email},
		})
	})
	if err != nil {
		return nil, appError(err, "failed to toggle user")
	}
	return updated, nil
}

// manageableTarget loads userID and rejects the actor itself and the DEAN.
func (s *UserService) manageableTarget(ctx context.Context, actor *models.User, userID, selfAction string) (*models.User, error) {
	if userID == actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot "+selfAction)
	}
	target, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user not found", "failed to load user")
	}
	if target.Role == models.RoleDean {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "the dean account cannot be modified")
	}
	return target, nil
}
