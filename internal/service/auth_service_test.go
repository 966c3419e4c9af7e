package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() *models.JWTClaims {
	now := time.Now()
	return &models.JWTClaims{
		Email:        "author@isufst.edu.ph",
		UserMetadata: map[string]interface{}{"full_name": "Ana Author"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "https://auth.example.test",
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "https://auth.example.test", Audience: "authenticated"})

	claims, err := svc.ValidateToken(signToken(t, "secret", validClaims()))
	require.NoError(t, err)
	identity := claims.Identity()
	assert.Equal(t, "user-1", identity.ID)
	assert.Equal(t, "author@isufst.edu.ph", identity.Email)
	assert.Equal(t, "Ana Author", identity.FullName)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "https://auth.example.test", Audience: "authenticated"})

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	noSubject := validClaims()
	noSubject.Subject = ""

	cases := map[string]string{
		"bad signature":  signToken(t, "other", validClaims()),
		"expired":        signToken(t, "secret", expired),
		"wrong audience": signToken(t, "secret", wrongAudience),
		"no subject":     signToken(t, "secret", noSubject),
		"garbage":        "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestValidateTokenLeeway(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Leeway: time.Minute})
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))

	_, err := svc.ValidateToken(signToken(t, "secret", claims))
	require.NoError(t, err)
}
