package pipeline

import (
	"crypto/hmac"
	"crypto/sha256"
)

// BreakGlassVerifier validates emergency-override credentials. A valid
// credential bypasses a zero-trust denial on actions that allow it; the
// bypass itself is always logged as a high-severity event.
type BreakGlassVerifier interface {
	Verify(credential string) bool
}

// SecretVerifier compares the supplied credential against a configured
// secret in constant time
type SecretVerifier struct {
	digest [32]byte
	armed  bool
}

// NewSecretVerifier creates a verifier for the configured secret. An empty
// secret disarms break-glass entirely: no credential ever verifies.
func NewSecretVerifier(secret string) *SecretVerifier {
	v := &SecretVerifier{}
	if secret != "" {
		v.digest = sha256.Sum256([]byte(secret))
		v.armed = true
	}
	return v
}

// Verify reports whether the credential matches the configured secret
func (v *SecretVerifier) Verify(credential string) bool {
	if !v.armed || credential == "" {
		return false
	}
	supplied := sha256.Sum256([]byte(credential))
	return hmac.Equal(supplied[:], v.digest[:])
}
