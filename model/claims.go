package model

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It deliberately carries
// only the account id.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
