package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ChallengeClaims combines standard claims with the SIWE challenge payload.
// The message and nonce travel inside the token because the server keeps no
// state between challenge issuance and verification.
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
}

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"` // ID of the refresh token
	UserID    string `json:"uid"`
	TeamID    string `json:"tid"`
}

// RefreshClaims combines standard claims with the session linkage needed to
// rebuild a session on rotation
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	TeamID string `json:"tid"`
}
