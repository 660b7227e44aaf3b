package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Signals are the device/software characteristics a client supplies for
// fingerprinting. No private or PII field participates: only environment
// characteristics that are stable across requests from the same device.
type Signals struct {
	UserAgent string
	Locale    string
	Timezone  string
	// Screen is the client's reported screen geometry, e.g. "1920x1080x24"
	Screen string
}

// HasMandatory reports whether enough signals are present to fingerprint.
// Without a user agent the fingerprint is meaningless; authentication then
// falls back to session/token identity only.
func (s Signals) HasMandatory() bool {
	return s.UserAgent != ""
}

// canonical produces an order-independent encoding of the signal set. Pairs
// are key-sorted so the digest is deterministic regardless of how the
// signals were collected.
func (s Signals) canonical() string {
	pairs := []string{
		"locale=" + s.Locale,
		"screen=" + s.Screen,
		"tz=" + s.Timezone,
		"ua=" + s.UserAgent,
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// FastDigest computes the low-collision FNV-1a digest clients send over the
// wire. It is cheap to compute in a browser and is never treated as proof
// of anything on its own.
func FastDigest(s Signals) string {
	h := fnv.New64a()
	h.Write([]byte(s.canonical()))
	return fmt.Sprintf("%016x", h.Sum64())
}

// StrongDigest recomputes the fingerprint server-side with SHA-256 over the
// same canonical signal set. A mismatch between the client digest and the
// server recomputation is a soft anomaly signal, not a block: clients may
// only have the fast digest.
func StrongDigest(s Signals) string {
	sum := sha256.Sum256([]byte(s.canonical()))
	return hex.EncodeToString(sum[:])
}

// VerifyFastDigest recomputes the fast digest from the signals and compares
// it to what the client sent. Returns false on mismatch so the caller can
// feed the anomaly into risk scoring.
func VerifyFastDigest(s Signals, clientDigest string) bool {
	if clientDigest == "" || !s.HasMandatory() {
		return true
	}
	return FastDigest(s) == clientDigest
}
