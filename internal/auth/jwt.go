package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrWrongTokenType is returned when a refresh token is presented as an access token
var ErrWrongTokenType = errors.New("not an access token")

// AccessClaims are the claims the library backend puts into its access tokens
type AccessClaims struct {
	// UserID is a number for the default backend, but any JSON scalar is accepted
	UserID    any    `json:"user_id"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// Caller returns the user id as a string
func (c *AccessClaims) Caller() string {
	if c.UserID == nil {
		return c.RegisteredClaims.Subject
	}
	return fmt.Sprint(c.UserID)
}

// Verifier checks backend access tokens signed with a shared HS256 key
type Verifier struct {
	key []byte
}

// NewVerifier creates a verifier for key. An empty key yields nil.
func NewVerifier(key string) *Verifier {
	if key == "" {
		return nil
	}
	return &Verifier{key: []byte(key)}
}

// ValidateToken validates a JWT token and returns the claims
func (v *Verifier) ValidateToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
