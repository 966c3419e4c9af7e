package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/rbac"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

func TestRequirePermission(t *testing.T) {
	inactive := models.User{ID: "ghost", Email: "ghost@isufst.edu.ph", Role: models.RoleEditor, IsActive: false}
	users := defaultUsers()
	users.users[inactive.ID] = &inactive
	svc := NewAuthzService(users)
	ctx := context.Background()

	actor, err := svc.RequirePermission(ctx, testEditor.ID, rbac.PermDOIAssign)
	require.NoError(t, err)
	assert.Equal(t, testEditor.ID, actor.ID)

	_, err = svc.RequirePermission(ctx, testEditor.ID, rbac.PermDOIRevoke)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "doi:revoke")
	assert.True(t, appErrors.IsAuthorization(err))

	_, err = svc.RequirePermission(ctx, inactive.ID, rbac.PermPaperRead)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	_, err = svc.RequirePermission(ctx, "missing", rbac.PermPaperRead)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.RequirePermission(ctx, "", rbac.PermPaperRead)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRequirePermissionRepoError(t *testing.T) {
	users := defaultUsers()
	users.findByIDErr = errors.New("connection reset")
	svc := NewAuthzService(users)

	_, err := svc.RequirePermission(context.Background(), testDean.ID, rbac.PermPaperRead)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.False(t, appErrors.IsAuthorization(err))
}

func TestRequireRole(t *testing.T) {
	svc := NewAuthzService(defaultUsers())
	ctx := context.Background()

	_, err := svc.RequireRole(ctx, testDean.ID, models.RoleEditor)
	require.NoError(t, err)

	_, err = svc.RequireRole(ctx, testReviewer.ID, models.RoleEditor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "EDITOR")
}
