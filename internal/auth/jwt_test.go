package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "django-insecure-test-key"

func sign(t *testing.T, key string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestNewVerifier_EmptyKey(t *testing.T) {
	assert.Nil(t, NewVerifier(""))
}

func TestValidateToken(t *testing.T) {
	v := NewVerifier(testKey)
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		wantSub string
		wantErr bool
	}{
		{
			name:    "valid access token",
			token:   sign(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7, "token_type": "access", "exp": future}),
			wantSub: "7",
		},
		{
			name:    "string user id",
			token:   sign(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "01HZX", "exp": future}),
			wantSub: "01HZX",
		},
		{
			name:    "expired",
			token:   sign(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7, "exp": past}),
			wantErr: true,
		},
		{
			name:    "no expiry",
			token:   sign(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}),
			wantErr: true,
		},
		{
			name:    "wrong key",
			token:   sign(t, "another-key", jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7, "exp": future}),
			wantErr: true,
		},
		{
			name:    "wrong algorithm",
			token:   sign(t, testKey, jwt.SigningMethodHS512, jwt.MapClaims{"user_id": 7, "exp": future}),
			wantErr: true,
		},
		{
			name:    "refresh token",
			token:   sign(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7, "token_type": "refresh", "exp": future}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, claims.Caller())
		})
	}
}
