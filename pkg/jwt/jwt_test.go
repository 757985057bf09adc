package jwt

import (
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func sign(t *testing.T, method jwtlib.SigningMethod, key interface{}, claims *Claims) string {
	t.Helper()
	token, err := jwtlib.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestGenerateToken_CarriesRoleAndLifetime(t *testing.T) {
	service := NewService(testSecret)

	for _, role := range []string{"viewer", "producer"} {
		t.Run(role, func(t *testing.T) {
			before := time.Now().Add(-time.Second)
			token, err := service.GenerateToken("user-123", role)
			require.NoError(t, err)

			claims, err := service.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, "user-123", claims.UserID)
			assert.Equal(t, role, claims.Role)
			assert.Equal(t, "reelshare", claims.Issuer)
			require.NotNil(t, claims.IssuedAt)
			require.NotNil(t, claims.ExpiresAt)
			assert.False(t, claims.IssuedAt.Time.Before(before.Truncate(time.Second)))
			assert.WithinDuration(t, claims.IssuedAt.Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	service := NewService(testSecret)
	issued := time.Now().Add(-tokenTTL - time.Hour)
	token := sign(t, jwtlib.SigningMethodHS256, []byte(testSecret), &Claims{
		UserID: "user-123",
		Role:   "producer",
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(issued),
			ExpiresAt: jwtlib.NewNumericDate(issued.Add(tokenTTL)),
		},
	})

	_, err := service.ValidateToken(token)
	assert.ErrorIs(t, err, jwtlib.ErrTokenExpired)
}

func TestValidateToken_ForgedRoleIsRejected(t *testing.T) {
	service := NewService(testSecret)
	viewerToken, err := service.GenerateToken("user-123", "viewer")
	require.NoError(t, err)

	// Re-encode the payload as a producer and keep the original signature.
	forged := sign(t, jwtlib.SigningMethodHS256, []byte("attacker-key"), &Claims{
		UserID:           "user-123",
		Role:             "producer",
		RegisteredClaims: jwtlib.RegisteredClaims{ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))},
	})
	parts := strings.Split(forged, ".")
	original := strings.Split(viewerToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + original[2]

	_, err = service.ValidateToken(tampered)
	assert.ErrorIs(t, err, jwtlib.ErrTokenSignatureInvalid)
}

func TestValidateToken_RejectsUnsignedToken(t *testing.T) {
	service := NewService(testSecret)
	token := sign(t, jwtlib.SigningMethodNone, jwtlib.UnsafeAllowNoneSignatureType, &Claims{
		UserID:           "user-123",
		Role:             "producer",
		RegisteredClaims: jwtlib.RegisteredClaims{ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour))},
	})

	_, err := service.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewService("secret-key-1").GenerateToken("user-123", "viewer")
	require.NoError(t, err)

	_, err = NewService("secret-key-2").ValidateToken(token)
	assert.ErrorIs(t, err, jwtlib.ErrTokenSignatureInvalid)
}

func TestValidateToken_Malformed(t *testing.T) {
	service := NewService(testSecret)

	_, err := service.ValidateToken("")
	assert.Error(t, err)

	_, err = service.ValidateToken("invalid-token")
	assert.ErrorIs(t, err, jwtlib.ErrTokenMalformed)
}
