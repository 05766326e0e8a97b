package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the staff access token claims issued by the identity provider.
// Subject carries the staff profile id. Role and center are never trusted from
// the token; they are loaded from the profiles table (see internal/rbac).
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
}
