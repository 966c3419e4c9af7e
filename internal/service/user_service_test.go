package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

func newUserFixture() (*UserService, *mockUserRepo, *mockAudit) {
	repo := defaultUsers()
	audit := &mockAudit{}
	return NewUserService(repo, NewAuthzService(repo), audit, &passTx{}, zap.NewNop()), repo, audit
}

func TestSyncCurrentUserExisting(t *testing.T) {
	svc, _, _ := newUserFixture()

	user, err := svc.SyncCurrentUser(context.Background(), models.Identity{ID: testEditor.ID, Email: testEditor.Email})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, user.Role)
}

func TestSyncCurrentUserProvisionsAuthor(t *testing.T) {
	svc, repo, _ := newUserFixture()

	user, err := svc.SyncCurrentUser(context.Background(), models.Identity{ID: "new-1", Email: " New.Author@ISUFST.edu.ph ", FullName: "New Author"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuthor, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, "new.author@isufst.edu.ph", user.Email)

	stored, err := repo.FindByID(context.Background(), "new-1")
	require.NoError(t, err)
	assert.Equal(t, "New Author", stored.FullName)
}

func TestSyncCurrentUserRejectsIncompleteIdentity(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.SyncCurrentUser(context.Background(), models.Identity{Email: "x@isufst.edu.ph"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.SyncCurrentUser(context.Background(), models.Identity{ID: "new-2"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// racingUserRepo misses the first lookup as if a concurrent request created the row in between.
type racingUserRepo struct {
	*mockUserRepo
	missed bool
}

func (r *racingUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !r.missed {
		r.missed = true
		return nil, sql.ErrNoRows
	}
	return r.mockUserRepo.FindByID(ctx, id)
}

func TestSyncCurrentUserConcurrentCreate(t *testing.T) {
	racing := &racingUserRepo{mockUserRepo: newMockUserRepo(models.User{ID: "u-1", Email: "u@isufst.edu.ph", Role: models.RoleReviewer, IsActive: true})}
	svc := NewUserService(racing, nil, &mockAudit{}, &passTx{}, nil)

	user, err := svc.SyncCurrentUser(context.Background(), models.Identity{ID: "u-1", Email: "u@isufst.edu.ph"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleReviewer, user.Role)
}

func TestSyncCurrentUserRepoError(t *testing.T) {
	repo := newMockUserRepo()
	repo.findByIDErr = errors.New("connection reset")
	svc := NewUserService(repo, nil, &mockAudit{}, &passTx{}, nil)

	_, err := svc.SyncCurrentUser(context.Background(), models.Identity{ID: "u-1", Email: "u@isufst.edu.ph"})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestListUsers(t *testing.T) {
	svc, repo, _ := newUserFixture()
	role := models.RoleAuthor

	users, page, err := svc.List(context.Background(), testEditor.ID, models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, testAuthor.ID, users[0].ID)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 20, repo.listFilter.PageSize)

	_, _, err = svc.List(context.Background(), testReviewer.ID, models.UserFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	bad := models.UserRole("ADMIN")
	_, _, err = svc.List(context.Background(), testEditor.ID, models.UserFilter{Role: &bad})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateRole(t *testing.T) {
	svc, repo, audit := newUserFixture()

	user, err := svc.UpdateRole(context.Background(), testDean.ID, testAuthor.ID, models.RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleReviewer, user.Role)

	stored, _ := repo.FindByID(context.Background(), testAuthor.ID)
	assert.Equal(t, models.RoleReviewer, stored.Role)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.AuditActionUpdateUserRole, entry.Action)
	assert.Equal(t, models.RoleAuthor, entry.Metadata["from"])
	assert.Equal(t, models.RoleReviewer, entry.Metadata["to"])
	assert.Equal(t, testDean.ID, entry.Actor.ID)
}

func TestUpdateRoleSameRoleIsNoop(t *testing.T) {
	svc, _, audit := newUserFixture()

	user, err := svc.UpdateRole(context.Background(), testDean.ID, testEditor.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, user.Role)
	assert.Empty(t, audit.entries)
}

func TestUpdateRoleRules(t *testing.T) {
	svc, _, audit := newUserFixture()
	ctx := context.Background()

	_, err := svc.UpdateRole(ctx, testEditor.ID, testAuthor.ID, models.RoleReviewer)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code, "editors cannot change roles")

	_, err = svc.UpdateRole(ctx, testDean.ID, testDean.ID, models.RoleEditor)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code, "no self change")

	_, err = svc.UpdateRole(ctx, testDean.ID, testAuthor.ID, models.UserRole("ROOT"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateRole(ctx, testDean.ID, "missing", models.RoleEditor)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assert.Empty(t, audit.entries)
}

func TestUpdateRoleProtectsDean(t *testing.T) {
	secondDean := models.User{ID: "dean-2", Email: "dean2@isufst.edu.ph", Role: models.RoleDean, IsActive: true}
	repo := newMockUserRepo(testDean, secondDean)
	svc := NewUserService(repo, NewAuthzService(repo), &mockAudit{}, &passTx{}, nil)

	_, err := svc.UpdateRole(context.Background(), testDean.ID, secondDean.ID, models.RoleEditor)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateRoleCannotGrantDean(t *testing.T) {
	svc, repo, audit := newUserFixture()

	_, err := svc.UpdateRole(context.Background(), testDean.ID, testEditor.ID, models.RoleDean)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	deans, err := repo.CountByRole(context.Background(), models.RoleDean)
	require.NoError(t, err)
	assert.Equal(t, 1, deans)
	editor, err := repo.FindByID(context.Background(), testEditor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, editor.Role)
	assert.Empty(t, audit.entries)
}

func TestToggleActive(t *testing.T) {
	svc, _, audit := newUserFixture()
	ctx := context.Background()

	user, err := svc.ToggleActive(ctx, testDean.ID, testReviewer.ID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, false, audit.entries[0].Metadata["is_active"])

	_, _, err = svc.List(ctx, testReviewer.ID, models.UserFilter{})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	user, err = svc.ToggleActive(ctx, testDean.ID, testReviewer.ID)
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	_, err = svc.ToggleActive(ctx, testDean.ID, testDean.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Len(t, audit.entries, 2)
}
