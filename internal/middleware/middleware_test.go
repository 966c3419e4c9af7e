package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/service"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (s *tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	s.token = token
	return s.claims, s.err
}

type userSyncerStub struct {
	user     *models.User
	err      error
	identity models.Identity
}

func (s *userSyncerStub) SyncCurrentUser(ctx context.Context, identity models.Identity) (*models.User, error) {
	s.identity = identity
	return s.user, s.err
}

func claimsFor(sub string) *models.JWTClaims {
	return &models.JWTClaims{Email: sub + "@isufst.edu.ph", RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
}

func guardedRouter(auth tokenValidator, users userSyncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", JWT(auth), RouteGuard(users, "/api/v1"))
	ok := func(c *gin.Context) {
		user, _ := UserFrom(c)
		c.String(http.StatusOK, string(user.Role))
	}
	api.GET("/papers", ok)
	api.GET("/admin/users", ok)
	api.GET("/admin/invites", ok)
	api.POST("/archive/volumes", ok)
	return r
}

func serve(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	auth := &tokenValidatorStub{claims: claimsFor("u1")}
	r := guardedRouter(auth, &userSyncerStub{user: &models.User{ID: "u1", Role: models.RoleAuthor, IsActive: true}})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/papers", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/papers", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/papers", "Bearer ").Code)

	w := serve(r, http.MethodGet, "/api/v1/papers", "bearer  token-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token-1", auth.token)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	auth := &tokenValidatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	r := guardedRouter(auth, &userSyncerStub{})

	w := serve(r, http.MethodGet, "/api/v1/papers", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestRouteGuardRoleTable(t *testing.T) {
	cases := []struct {
		role   models.UserRole
		path   string
		method string
		status int
	}{
		{models.RoleAuthor, "/api/v1/papers", http.MethodGet, http.StatusOK},
		{models.RoleAuthor, "/api/v1/admin/invites", http.MethodGet, http.StatusForbidden},
		{models.RoleEditor, "/api/v1/admin/invites", http.MethodGet, http.StatusOK},
		{models.RoleEditor, "/api/v1/admin/users", http.MethodGet, http.StatusForbidden},
		{models.RoleDean, "/api/v1/admin/users", http.MethodGet, http.StatusOK},
		{models.RoleAuthor, "/api/v1/archive/volumes", http.MethodPost, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(string(tc.role)+" "+tc.path, func(t *testing.T) {
			users := &userSyncerStub{user: &models.User{ID: "u1", Role: tc.role, IsActive: true}}
			r := guardedRouter(&tokenValidatorStub{claims: claimsFor("u1")}, users)

			w := serve(r, tc.method, tc.path, "Bearer t")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "u1", users.identity.ID)
		})
	}
}

func TestRouteGuardInactiveAccount(t *testing.T) {
	users := &userSyncerStub{user: &models.User{ID: "u1", Role: models.RoleDean, IsActive: false}}
	r := guardedRouter(&tokenValidatorStub{claims: claimsFor("u1")}, users)

	w := serve(r, http.MethodGet, "/api/v1/papers", "Bearer t")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_INACTIVE")
}

func TestRouteGuardSyncFailure(t *testing.T) {
	users := &userSyncerStub{err: appErrors.Clone(appErrors.ErrValidation, "identity has no email")}
	r := guardedRouter(&tokenValidatorStub{claims: claimsFor("u1")}, users)

	w := serve(r, http.MethodGet, "/api/v1/papers", "Bearer t")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteGuardWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/papers", RouteGuard(&userSyncerStub{}, "/api/v1"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/papers", "").Code)
}

func TestMetricsMiddlewareNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil, "/api/v1"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
}

func TestMetricsMiddlewareLabelsRouteGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/api/v1"))
	r.GET("/api/v1/admin/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/api/v1/admin/users/u-1", "")
	serve(r, http.MethodGet, "/api/v1/nowhere/42", "")

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var labels []map[string]string
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			set := map[string]string{}
			for _, pair := range metric.GetLabel() {
				set[pair.GetName()] = pair.GetValue()
			}
			labels = append(labels, set)
		}
	}
	assert.ElementsMatch(t, []map[string]string{
		{"method": "GET", "group": "admin/users", "path": "/api/v1/admin/users/:id", "status": "200"},
		{"method": "GET", "group": "unmatched", "path": "unmatched", "status": "404"},
	}, labels)
}

func TestRouteGroup(t *testing.T) {
	cases := map[string]string{
		"/api/v1/papers/:id/status":     "papers",
		"/api/v1/archive/volumes":       "archive",
		"/api/v1/admin/archive/volumes": "admin/archive",
		"/api/v1/admin/audit/export":    "admin/audit",
		"/api/v1/me":                    "me",
		"/health":                       "system",
		"/api/v1":                       "system",
		"":                              "unmatched",
	}
	for path, want := range cases {
		assert.Equal(t, want, routeGroup("/api/v1", path), path)
	}
}

func TestPublicArchiveMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var inside, outside map[string]interface{}
	r.GET("/archive/volumes", PublicArchive(), func(c *gin.Context) {
		SetArchiveCacheHit(c, true)
		inside = ArchiveMeta(c)
		c.Status(http.StatusOK)
	})
	r.GET("/papers", func(c *gin.Context) {
		SetArchiveCacheHit(c, true)
		outside = ArchiveMeta(c)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/archive/volumes", "")
	serve(r, http.MethodGet, "/papers", "")

	require.NotNil(t, inside)
	assert.Equal(t, true, inside["cache_hit"])
	assert.Nil(t, outside)
}
