package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type mockInviteRepo struct {
	mu        sync.Mutex
	invites   map[string]*models.Invite
	createErr error
}

func newMockInviteRepo() *mockInviteRepo {
	return &mockInviteRepo{invites: make(map[string]*models.Invite)}
}

func (m *mockInviteRepo) Create(ctx context.Context, invite *models.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copy := *invite
	m.invites[invite.ID] = &copy
	return nil
}

func (m *mockInviteRepo) FindByID(ctx context.Context, id string) (*models.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invites[id]; ok {
		copy := *inv
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInviteRepo) FindPendingByEmail(ctx context.Context, email string) (*models.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invites {
		if inv.Email == email && inv.Status == models.InviteStatusPending {
			copy := *inv
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInviteRepo) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok || inv.Status != models.InviteStatusPending {
		return sql.ErrNoRows
	}
	inv.Status = models.InviteStatusAccepted
	inv.AcceptedAt = &at
	return nil
}

func (m *mockInviteRepo) MarkExpired(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invites[id]; ok && inv.Status == models.InviteStatusPending {
		inv.Status = models.InviteStatusExpired
	}
	return nil
}

func (m *mockInviteRepo) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inv := range m.invites {
		if inv.Status == models.InviteStatusPending && inv.Expired(now) {
			inv.Status = models.InviteStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockInviteRepo) status(id string) models.InviteStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invites[id].Status
}

type inviteFixture struct {
	invites *mockInviteRepo
	users   *mockUserRepo
	audit   *mockAudit
	now     time.Time
	svc     *InviteService
}

func newInviteFixture() *inviteFixture {
	f := &inviteFixture{
		invites: newMockInviteRepo(),
		users:   defaultUsers(),
		audit:   &mockAudit{},
		now:     time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewInviteService(f.invites, f.users, NewAuthzService(f.users), f.audit, &passTx{}, nil, zap.NewNop(),
		WithInviteClock(func() time.Time { return f.now }))
	return f
}

func (f *inviteFixture) issue(t *testing.T, email string, role models.UserRole) *models.IssuedInvite {
	t.Helper()
	issued, err := f.svc.CreateInvite(context.Background(), testEditor.ID, dto.CreateInviteRequest{Email: email, Role: string(role)})
	require.NoError(t, err)
	return issued
}

func TestCreateInvite(t *testing.T) {
	f := newInviteFixture()

	issued := f.issue(t, " Reviewer.New@ISUFST.edu.ph ", models.RoleReviewer)
	assert.Equal(t, "reviewer.new@isufst.edu.ph", issued.Email)
	assert.Equal(t, models.InviteStatusPending, issued.Status)
	assert.Equal(t, testEditor.ID, issued.InvitedBy)
	assert.Equal(t, f.now.Add(DefaultInviteTTL), issued.ExpiresAt)
	assert.True(t, strings.HasPrefix(issued.Token, issued.ID+"."))

	stored, err := f.invites.FindByID(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.TokenHash)
	assert.NotContains(t, stored.TokenHash, strings.TrimPrefix(issued.Token, issued.ID+"."))
	assert.Equal(t, []string{models.AuditActionCreateInvite}, f.audit.actions())
}

func TestCreateInviteCustomTTL(t *testing.T) {
	f := newInviteFixture()
	f.svc = NewInviteService(f.invites, f.users, NewAuthzService(f.users), f.audit, &passTx{}, nil, nil,
		WithInviteClock(func() time.Time { return f.now }), WithInviteTTL(48*time.Hour))

	issued := f.issue(t, "x@isufst.edu.ph", models.RoleAuthor)
	assert.Equal(t, f.now.Add(48*time.Hour), issued.ExpiresAt)
}

func TestCreateInviteRoleCeiling(t *testing.T) {
	f := newInviteFixture()
	ctx := context.Background()

	_, err := f.svc.CreateInvite(ctx, testEditor.ID, dto.CreateInviteRequest{Email: "d@isufst.edu.ph", Role: string(models.RoleDean)})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateInvite(ctx, testReviewer.ID, dto.CreateInviteRequest{Email: "a@isufst.edu.ph", Role: string(models.RoleAuthor)})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateInvite(ctx, testDean.ID, dto.CreateInviteRequest{Email: "d@isufst.edu.ph", Role: string(models.RoleDean)})
	require.NoError(t, err)

	_, err = f.svc.CreateInvite(ctx, testEditor.ID, dto.CreateInviteRequest{Email: "a@isufst.edu.ph", Role: "ADMIN"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateInviteConflicts(t *testing.T) {
	f := newInviteFixture()
	ctx := context.Background()
	f.issue(t, "dup@isufst.edu.ph", models.RoleReviewer)

	_, err := f.svc.CreateInvite(ctx, testEditor.ID, dto.CreateInviteRequest{Email: "DUP@isufst.edu.ph", Role: string(models.RoleEditor)})
	assert.True(t, errors.Is(err, appErrors.ErrInvitePending))

	_, err = f.svc.CreateInvite(ctx, testEditor.ID, dto.CreateInviteRequest{Email: testAuthor.Email, Role: string(models.RoleReviewer)})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateInviteAfterExpiry(t *testing.T) {
	f := newInviteFixture()
	first := f.issue(t, "late@isufst.edu.ph", models.RoleReviewer)

	f.now = f.now.Add(DefaultInviteTTL + time.Minute)
	second := f.issue(t, "late@isufst.edu.ph", models.RoleReviewer)

	assert.Equal(t, models.InviteStatusExpired, f.invites.status(first.ID))
	assert.Equal(t, models.InviteStatusPending, f.invites.status(second.ID))
}

func TestCreateInviteUniqueViolation(t *testing.T) {
	f := newInviteFixture()
	f.invites.createErr = &pq.Error{Code: "23505", Constraint: repository.InvitePendingEmailConstraint}

	_, err := f.svc.CreateInvite(context.Background(), testEditor.ID, dto.CreateInviteRequest{Email: "race@isufst.edu.ph", Role: string(models.RoleReviewer)})
	assert.True(t, errors.Is(err, appErrors.ErrInvitePending))
}

func TestAcceptInviteCreatesUser(t *testing.T) {
	f := newInviteFixture()
	issued := f.issue(t, "reviewer.new@isufst.edu.ph", models.RoleReviewer)

	user, err := f.svc.AcceptInvite(context.Background(), issued.Token, models.Identity{ID: "idp-42", Email: "Reviewer.New@isufst.edu.ph", FullName: "Rey Viewer"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleReviewer, user.Role)
	assert.Equal(t, "reviewer.new@isufst.edu.ph", user.Email)
	assert.True(t, user.IsActive)
	assert.Equal(t, models.InviteStatusAccepted, f.invites.status(issued.ID))

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, models.AuditActionAcceptInvite, last.Action)
	assert.Equal(t, "idp-42", last.Actor.ID)

	_, err = f.svc.AcceptInvite(context.Background(), issued.Token, models.Identity{ID: "idp-42", Email: "reviewer.new@isufst.edu.ph"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAcceptInvitePromotesExistingAccount(t *testing.T) {
	f := newInviteFixture()
	issued := f.issue(t, "self.signup@isufst.edu.ph", models.RoleEditor)
	require.NoError(t, f.users.Create(context.Background(), &models.User{ID: "idp-7", Email: "self.signup@isufst.edu.ph", Role: models.RoleAuthor, IsActive: true}))

	user, err := f.svc.AcceptInvite(context.Background(), issued.Token, models.Identity{ID: "idp-7", Email: "self.signup@isufst.edu.ph"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, user.Role)
}

func TestAcceptInviteNeverDemotes(t *testing.T) {
	f := newInviteFixture()
	issued := f.issue(t, "senior.editor@isufst.edu.ph", models.RoleReviewer)
	require.NoError(t, f.users.Create(context.Background(), &models.User{ID: "idp-8", Email: "senior.editor@isufst.edu.ph", Role: models.RoleEditor, IsActive: true}))

	user, err := f.svc.AcceptInvite(context.Background(), issued.Token, models.Identity{ID: "idp-8", Email: "senior.editor@isufst.edu.ph"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, user.Role)

	stored, err := f.users.FindByID(context.Background(), "idp-8")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, stored.Role)
	assert.Equal(t, models.InviteStatusAccepted, f.invites.status(issued.ID))
}

func TestAcceptInviteRejects(t *testing.T) {
	f := newInviteFixture()
	issued := f.issue(t, "target@isufst.edu.ph", models.RoleReviewer)
	identity := models.Identity{ID: "idp-1", Email: "target@isufst.edu.ph"}
	ctx := context.Background()

	_, err := f.svc.AcceptInvite(ctx, "garbage", identity)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.AcceptInvite(ctx, issued.ID+".wrong-secret", identity)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.AcceptInvite(ctx, issued.Token, models.Identity{ID: "idp-2", Email: "someone.else@isufst.edu.ph"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.AcceptInvite(ctx, issued.Token, models.Identity{Email: "target@isufst.edu.ph"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	assert.Equal(t, models.InviteStatusPending, f.invites.status(issued.ID))
}

func TestAcceptInviteExpired(t *testing.T) {
	f := newInviteFixture()
	issued := f.issue(t, "slow@isufst.edu.ph", models.RoleReviewer)
	f.now = f.now.Add(DefaultInviteTTL)

	_, err := f.svc.AcceptInvite(context.Background(), issued.Token, models.Identity{ID: "idp-1", Email: "slow@isufst.edu.ph"})
	assert.True(t, errors.Is(err, appErrors.ErrInviteExpired))
	assert.Equal(t, models.InviteStatusExpired, f.invites.status(issued.ID))

	_, err = f.svc.AcceptInvite(context.Background(), issued.Token, models.Identity{ID: "idp-1", Email: "slow@isufst.edu.ph"})
	assert.True(t, errors.Is(err, appErrors.ErrInviteExpired))
}

func TestExpireInvites(t *testing.T) {
	f := newInviteFixture()
	f.issue(t, "one@isufst.edu.ph", models.RoleReviewer)
	f.issue(t, "two@isufst.edu.ph", models.RoleReviewer)

	count, err := f.svc.ExpireInvites(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	f.now = f.now.Add(DefaultInviteTTL + time.Hour)
	count, err = f.svc.ExpireInvites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, models.AuditActionExpireInvites, last.Action)
	assert.Equal(t, int64(2), last.Metadata["count"])
}
