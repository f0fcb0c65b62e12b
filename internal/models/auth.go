package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id, falling back to the registered sub claim.
func (c *JWTClaims) SubjectID() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
