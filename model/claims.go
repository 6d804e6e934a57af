package model

import "github.com/golang-jwt/jwt/v5"

// AppClaims are the claims embedded in every access token. Subject carries
// the user id; ID is a unique token id (jti).
type AppClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
