package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/middleware"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type userServiceMock struct {
	lastFilter models.UserFilter
	lastRole   models.UserRole
	toggled    string
	err        error
}

func (m *userServiceMock) List(ctx context.Context, actorID string, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.User{{ID: "u-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.err
}

func (m *userServiceMock) UpdateRole(ctx context.Context, actorID, userID string, role models.UserRole) (*models.User, error) {
	m.lastRole = role
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: userID, Role: role}, nil
}

func (m *userServiceMock) ToggleActive(ctx context.Context, actorID, userID string) (*models.User, error) {
	m.toggled = userID
	return &models.User{ID: userID}, m.err
}

type inviteServiceMock struct {
	createReq dto.CreateInviteRequest
	token     string
	identity  models.Identity
	acceptErr error
}

func (m *inviteServiceMock) CreateInvite(ctx context.Context, actorID string, req dto.CreateInviteRequest) (*models.IssuedInvite, error) {
	m.createReq = req
	return &models.IssuedInvite{Invite: models.Invite{ID: "inv-1", Email: req.Email}, Token: "inv-1.secret"}, nil
}

func (m *inviteServiceMock) AcceptInvite(ctx context.Context, token string, identity models.Identity) (*models.User, error) {
	m.token = token
	m.identity = identity
	if m.acceptErr != nil {
		return nil, m.acceptErr
	}
	return &models.User{ID: identity.ID, Role: models.RoleReviewer}, nil
}

type auditServiceMock struct {
	lastFilter repository.AuditFilter
	exportErr  error
}

func (m *auditServiceMock) Export(ctx context.Context, actorID string, filter repository.AuditFilter) ([]byte, error) {
	m.lastFilter = filter
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return []byte("action\nASSIGN_DOI\n"), nil
}

func (m *auditServiceMock) List(ctx context.Context, actorID string, filter repository.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.AuditLog{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }

func TestUserHandlerMe(t *testing.T) {
	h := NewUserHandler(&userServiceMock{})
	c, w := testContext(http.MethodGet, "/me", nil, "")
	asUser(c, "reviewer-1", models.RoleReviewer)

	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"reviewer-1"`)
	assert.Contains(t, w.Body.String(), `"permissions":[`)
}

func TestUserHandlerListFilters(t *testing.T) {
	svc := &userServiceMock{}
	h := NewUserHandler(svc)
	c, w := testContext(http.MethodGet, "/admin/users?role=editor&active=false&search=ana", nil, "")
	asUser(c, "dean-1", models.RoleDean)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastFilter.Role)
	assert.Equal(t, models.RoleEditor, *svc.lastFilter.Role)
	require.NotNil(t, svc.lastFilter.Active)
	assert.False(t, *svc.lastFilter.Active)
	assert.Equal(t, "ana", svc.lastFilter.Search)
	assert.Equal(t, 20, svc.lastFilter.PageSize)
}

func TestUserHandlerUpdateRole(t *testing.T) {
	svc := &userServiceMock{}
	h := NewUserHandler(svc)
	c, w := testContext(http.MethodPatch, "/admin/users/u-2/role", bytes.NewBufferString(`{"role":"reviewer"}`), "application/json")
	c.Params = gin.Params{{Key: "id", Value: "u-2"}}
	asUser(c, "dean-1", models.RoleDean)

	h.UpdateRole(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleReviewer, svc.lastRole)
}

func TestUserHandlerUpdateRoleForbidden(t *testing.T) {
	h := NewUserHandler(&userServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "cannot change your own role")})
	c, w := testContext(http.MethodPatch, "/admin/users/dean-1/role", bytes.NewBufferString(`{"role":"AUTHOR"}`), "application/json")
	c.Params = gin.Params{{Key: "id", Value: "dean-1"}}
	asUser(c, "dean-1", models.RoleDean)

	h.UpdateRole(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserHandlerToggleActive(t *testing.T) {
	svc := &userServiceMock{}
	h := NewUserHandler(svc)
	c, w := testContext(http.MethodPatch, "/admin/users/u-3/toggle-active", nil, "")
	c.Params = gin.Params{{Key: "id", Value: "u-3"}}
	asUser(c, "dean-1", models.RoleDean)

	h.ToggleActive(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-3", svc.toggled)
}

func TestInviteHandlerCreate(t *testing.T) {
	svc := &inviteServiceMock{}
	h := NewInviteHandler(svc)
	c, w := testContext(http.MethodPost, "/admin/invites", bytes.NewBufferString(`{"email":"new@isufst.edu.ph","role":"REVIEWER"}`), "application/json")
	asUser(c, "editor-1", models.RoleEditor)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "new@isufst.edu.ph", svc.createReq.Email)
	assert.Contains(t, w.Body.String(), `"token":"inv-1.secret"`)
}

func TestInviteHandlerAcceptUsesTokenIdentity(t *testing.T) {
	svc := &inviteServiceMock{}
	h := NewInviteHandler(svc)
	c, w := testContext(http.MethodPost, "/invites/accept", bytes.NewBufferString(`{"token":"inv-1.secret"}`), "application/json")
	c.Set(middleware.ContextClaimsKey, &models.JWTClaims{
		Email:            "new@isufst.edu.ph",
		UserMetadata:     map[string]interface{}{"full_name": "New Reviewer"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-9"},
	})

	h.Accept(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inv-1.secret", svc.token)
	assert.Equal(t, models.Identity{ID: "sub-9", Email: "new@isufst.edu.ph", FullName: "New Reviewer"}, svc.identity)
}

func TestInviteHandlerAcceptExpired(t *testing.T) {
	h := NewInviteHandler(&inviteServiceMock{acceptErr: appErrors.ErrInviteExpired})
	c, w := testContext(http.MethodPost, "/invites/accept", bytes.NewBufferString(`{"token":"inv-1.secret"}`), "application/json")
	c.Set(middleware.ContextClaimsKey, &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-9"}})

	h.Accept(c)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestInviteHandlerAcceptWithoutClaims(t *testing.T) {
	h := NewInviteHandler(&inviteServiceMock{})
	c, w := testContext(http.MethodPost, "/invites/accept", bytes.NewBufferString(`{"token":"x"}`), "application/json")

	h.Accept(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditHandlerListFilters(t *testing.T) {
	svc := &auditServiceMock{}
	h := NewAuditHandler(svc)
	c, w := testContext(http.MethodGet, "/admin/audit?target_type=paper&target_id=p-1&action=ASSIGN_DOI&page=3", nil, "")
	asUser(c, "editor-1", models.RoleEditor)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.AuditFilter{TargetType: "paper", TargetID: "p-1", Action: "ASSIGN_DOI", Page: 3, PageSize: 20}, svc.lastFilter)
}

func TestAuditHandlerExport(t *testing.T) {
	svc := &auditServiceMock{}
	h := NewAuditHandler(svc)
	c, w := testContext(http.MethodGet, "/admin/audit/export?actor_id=dean-1", nil, "")
	asUser(c, "editor-1", models.RoleEditor)

	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit-logs.csv")
	assert.Equal(t, "action\nASSIGN_DOI\n", w.Body.String())
	assert.Equal(t, "dean-1", svc.lastFilter.ActorID)
}

func TestAuditHandlerExportForbidden(t *testing.T) {
	h := NewAuditHandler(&auditServiceMock{exportErr: appErrors.ErrForbidden})
	c, w := testContext(http.MethodGet, "/admin/audit/export", nil, "")
	asUser(c, "author-1", models.RoleAuthor)

	h.Export(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	c, w := testContext(http.MethodGet, "/ready", nil, "")
	NewMetricsHandler(nil, pingStub{}).Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = testContext(http.MethodGet, "/ready", nil, "")
	NewMetricsHandler(nil, pingStub{err: errors.New("connection refused")}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheusUnavailable(t *testing.T) {
	c, w := testContext(http.MethodGet, "/metrics", nil, "")
	NewMetricsHandler(nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
