package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the identity minted into an access token.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Email    string
	Username string
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by clients.
type AccessTokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username,omitempty"`
	jwt.RegisteredClaims
}
