package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

const inviteSecretBytes = 32

// DefaultInviteTTL is how long an invite stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

type inviteStore interface {
	Create(ctx context.Context, invite *models.Invite) error
	FindByID(ctx context.Context, id string) (*models.Invite, error)
	FindPendingByEmail(ctx context.Context, email string) (*models.Invite, error)
	MarkAccepted(ctx context.Context, id string, at time.Time) error
	MarkExpired(ctx context.Context, id string) error
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

type inviteUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

// InviteService issues and redeems role invites.
type InviteService struct {
	invites   inviteStore
	users     inviteUserStore
	authz     permissionChecker
	audit     auditRecorder
	tx        txRunner
	validator *validator.Validate
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// InviteServiceOption customises the invite service.
type InviteServiceOption func(*InviteService)

// WithInviteTTL overrides the invite lifetime.
func WithInviteTTL(ttl time.Duration) InviteServiceOption {
	return func(s *InviteService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithInviteClock overrides the clock.
func WithInviteClock(now func() time.Time) InviteServiceOption {
	return func(s *InviteService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInviteService constructs an InviteService.
func NewInviteService(invites inviteStore, users inviteUserStore, authz permissionChecker, audit auditRecorder, tx txRunner, validate *validator.Validate, logger *zap.Logger, opts ...InviteServiceOption) *InviteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &InviteService{
		invites:   invites,
		users:     users,
		authz:     authz,
		audit:     audit,
		tx:        tx,
		validator: validate,
		ttl:       DefaultInviteTTL,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateInvite issues an invite and returns the plaintext token once. Only a bcrypt hash of its
// secret part is stored.
func (s *InviteService) CreateInvite(ctx context.Context, actorID string, req dto.CreateInviteRequest) (*models.IssuedInvite, error) {
	actor, err := s.authz.RequirePermission(ctx, actorID, rbac.PermUserInvite)
	if err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invite payload")
	}
	role := models.UserRole(req.Role)
	if _, err := s.authz.RequireRole(ctx, actor.ID, role); err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrForbidden.Code {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("cannot invite with role %s above your own", role))
		}
		return nil, err
	}

	now := s.now().UTC()
	s.expireStale(ctx, now)

	if _, err := s.invites.FindPendingByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.ErrInvitePending
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appError(err, "failed to check pending invites")
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a user with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appError(err, "failed to check existing users")
	}

	invite := &models.Invite{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Role:      role,
		Status:    models.InviteStatusPending,
		InvitedBy: actor.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	token, hash, err := newInviteToken(invite.ID)
	if err != nil {
		return nil, appError(err, "failed to generate invite token")
	}
	invite.TokenHash = hash

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.invites.Create(ctx, invite); err != nil {
			if repository.IsUniqueViolation(err, repository.InvitePendingEmailConstraint) {
				return appErrors.ErrInvitePending
			}
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionCreateInvite,
			TargetID:   invite.ID,
			TargetType: models.AuditTargetInvite,
			Actor:      actor,
			Metadata:   map[string]interface{}{"email": invite.Email, "role": invite.Role, "expires_at": invite.ExpiresAt},
		})
	})
	if err != nil {
		return nil, appError(err, "failed to create invite")
	}
	return &models.IssuedInvite{Invite: *invite, Token: token}, nil
}

// AcceptInvite redeems token for identity, creating the account with the invited role or
// promoting the account the identity already has.
func (s *InviteService) AcceptInvite(ctx context.Context, token string, identity models.Identity) (*models.User, error) {
	if identity.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authenticated")
	}
	inviteID, secret, err := parseInviteToken(token)
	if err != nil {
		return nil, err
	}
	invite, err := s.invites.FindByID(ctx, inviteID)
	if err != nil {
		return nil, lookupError(err, "invite not found", "failed to load invite")
	}
	if bcrypt.CompareHashAndPassword([]byte(invite.TokenHash), []byte(secret)) != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "invite not found")
	}
	switch invite.Status {
	case models.InviteStatusPending:
	case models.InviteStatusExpired:
		return nil, appErrors.ErrInviteExpired
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "invite has already been used")
	}
	now := s.now().UTC()
	if invite.Expired(now) {
		if err := s.invites.MarkExpired(ctx, invite.ID); err != nil {
			s.logger.Warn("failed to mark invite expired", zap.String("invite_id", invite.ID), zap.Error(err))
		}
		return nil, appErrors.ErrInviteExpired
	}
	if !strings.EqualFold(strings.TrimSpace(identity.Email), invite.Email) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invite was issued to a different email")
	}
	if invite.Role == models.RoleDean {
		if deans, err := s.users.CountByRole(ctx, models.RoleDean); err == nil && deans > 0 {
			s.logger.Warn("accepting dean invite while a dean exists", zap.String("invite_id", invite.ID), zap.Int("deans", deans))
		}
	}

	var user *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if user, err = s.provision(ctx, identity, invite.Role); err != nil {
			return err
		}
		if err := s.invites.MarkAccepted(ctx, invite.ID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "invite has already been used")
			}
			return err
		}
		return s.audit.Record(ctx, models.AuditEntry{
			Action:     models.AuditActionAcceptInvite,
			TargetID:   invite.ID,
			TargetType: models.AuditTargetInvite,
			Actor:      user,
			Metadata:   map[string]interface{}{"email": invite.Email, "role": invite.Role, "invited_by": invite.InvitedBy},
		})
	})
	if err != nil {
		return nil, appError(err, "failed to accept invite")
	}
	s.logger.Info("invite accepted", zap.String("invite_id", invite.ID), zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// ExpireInvites flips every overdue PENDING invite to EXPIRED.
func (s *InviteService) ExpireInvites(ctx context.Context) (int64, error) {
	count, err := s.invites.ExpireBefore(ctx, s.now().UTC())
	if err != nil {
		return 0, appError(err, "failed to expire invites")
	}
	if count > 0 {
		s.audit.RecordBestEffort(ctx, models.AuditEntry{
			Action:     models.AuditActionExpireInvites,
			TargetID:   "pending",
			TargetType: models.AuditTargetInvite,
			Metadata:   map[string]interface{}{"count": count},
		})
	}
	return count, nil
}

func (s *InviteService) expireStale(ctx context.Context, now time.Time) {
	if _, err := s.invites.ExpireBefore(ctx, now); err != nil {
		s.logger.Warn("failed to expire stale invites", zap.Error(err))
	}
}

// provision creates the invited account, or promotes an existing one. Invites never demote.
func (s *InviteService) provision(ctx context.Context, identity models.Identity, role models.UserRole) (*models.User, error) {
	existing, err := s.users.FindByID(ctx, identity.ID)
	if errors.Is(err, sql.ErrNoRows) {
		user := &models.User{
			ID:       identity.ID,
			Email:    strings.ToLower(strings.TrimSpace(identity.Email)),
			FullName: strings.TrimSpace(identity.FullName),
			Role:     role,
			IsActive: true,
		}
		err = s.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		// created by a concurrent request
		existing, err = s.users.FindByID(ctx, identity.ID)
	}
	if err != nil {
		return nil, err
	}
	if rbac.Rank(role) <= rbac.Rank(existing.Role) {
		return existing, nil
	}
	updated, err := s.users.UpdateRole(ctx, identity.ID, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "account role cannot be changed by invite")
		}
		return nil, err
	}
	return updated, nil
}

// newInviteToken returns "{inviteID}.{secret}" and the bcrypt hash of the secret.
func newInviteToken(inviteID string) (string, string, error) {
	buf := make([]byte, inviteSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return inviteID + "." + secret, string(hash), nil
}

func parseInviteToken(token string) (string, string, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return "", "", validationError("invalid invite token")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", validationError("invalid invite token")
	}
	return id, secret, nil
}
