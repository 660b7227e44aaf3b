package sessions

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hung6066/IVF-sub008/models"
)

const testSecret = "unit-test-secret"

func issue(t *testing.T, secret string, claims *SessionClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() *SessionClaims {
	return &SessionClaims{
		SessionID: "sess-9",
		Role:      models.RoleNurse,
		AMR:       []string{"pwd"},
		AuthTime:  time.Now().Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "nurse.costa",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := NewTokenVerifier(testSecret, 15*time.Minute)
	claims, err := v.Verify(issue(t, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "nurse.costa", claims.Subject)
	assert.Equal(t, "sess-9", claims.SessionID)
	assert.Equal(t, models.RoleNurse, claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewTokenVerifier(testSecret, 15*time.Minute)
	_, err := v.Verify(issue(t, "wrong-secret", validClaims()))
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewTokenVerifier(testSecret, 15*time.Minute)
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := v.Verify(issue(t, testSecret, claims))
	assert.Error(t, err)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	v := NewTokenVerifier(testSecret, 15*time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(unsigned)
	assert.Error(t, err)
}

func TestAuthLevelFromAMR(t *testing.T) {
	v := NewTokenVerifier(testSecret, 15*time.Minute)
	now := time.Now()

	tests := []struct {
		name string
		amr  []string
		want models.AuthLevel
	}{
		{"no amr", nil, models.AuthLevelSession},
		{"password", []string{"pwd"}, models.AuthLevelPassword},
		{"otp", []string{"pwd", "otp"}, models.AuthLevelMFA},
		{"hardware key", []string{"pwd", "hwk"}, models.AuthLevelMFA},
		{"biometric beats mfa", []string{"mfa", "bio"}, models.AuthLevelBiometric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			claims.AMR = tt.amr
			assert.Equal(t, tt.want, v.AuthLevel(claims, now))
		})
	}
}

func TestIsFresh(t *testing.T) {
	v := NewTokenVerifier(testSecret, 15*time.Minute)
	now := time.Now()

	claims := validClaims()
	claims.AuthTime = now.Add(-5 * time.Minute).Unix()
	assert.True(t, v.IsFresh(claims, now))

	claims.AuthTime = now.Add(-16 * time.Minute).Unix()
	assert.False(t, v.IsFresh(claims, now))

	claims.AuthTime = 0
	assert.False(t, v.IsFresh(claims, now), "missing auth_time never counts as fresh")
}
