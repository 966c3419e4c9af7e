package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the payload of access tokens minted by the identity provider.
type JWTClaims struct {
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts claims into the caller identity.
func (c *JWTClaims) Identity() Identity {
	id := Identity{ID: c.Subject, Email: c.Email}
	if name, ok := c.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id
}
