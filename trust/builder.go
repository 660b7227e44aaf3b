package trust

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hung6066/IVF-sub008/models"
	"github.com/Hung6066/IVF-sub008/sessions"
)

// Header names for the client trust-context contract. All are optional
// except the correlation id, which the server generates itself when absent.
const (
	HeaderDeviceFingerprint = "X-Device-Fingerprint"
	HeaderSessionID         = "X-Session-Id"
	HeaderCorrelationID     = "X-Correlation-Id"
	HeaderTimezone          = "X-Timezone"
	HeaderScreen            = "X-Screen"
)

// DeviceTrustChecker answers whether a fingerprint is already known for a
// principal. The risk evaluator satisfies this.
type DeviceTrustChecker interface {
	DeviceTrust(ctx context.Context, username, fingerprint string) (*models.DeviceTrust, error)
}

// CountryResolver resolves a source IP to a country code for geo-fencing
type CountryResolver interface {
	Country(ipAddress string) string
}

// Builder derives a trust context from raw client signals. Building is a
// pure function of the request apart from the session and device lookups;
// the result is attached to the request envelope and discarded at request
// end.
type Builder struct {
	verifier *sessions.TokenVerifier
	store    sessions.Store
	devices  DeviceTrustChecker
	country  CountryResolver
}

// NewBuilder wires the builder's collaborators. devices and country may be
// nil; the corresponding context fields then stay at their zero values.
func NewBuilder(verifier *sessions.TokenVerifier, store sessions.Store, devices DeviceTrustChecker, country CountryResolver) *Builder {
	return &Builder{verifier: verifier, store: store, devices: devices, country: country}
}

// Build derives the trust context for one request
func (b *Builder) Build(r *http.Request) *Context {
	tc := &Context{
		CorrelationID: r.Header.Get(HeaderCorrelationID),
		SessionID:     r.Header.Get(HeaderSessionID),
		SourceIP:      ClientIP(r),
		AuthLevel:     models.AuthLevelNone,
	}
	if tc.CorrelationID == "" {
		tc.CorrelationID = uuid.New().String()
	}

	b.fingerprint(r, tc)
	b.authenticate(r, tc)

	if b.country != nil {
		tc.Country = b.country.Country(tc.SourceIP)
	}
	if b.devices != nil && tc.AuthenticatedUserID != "" && tc.DeviceFingerprint != "" {
		if dt, err := b.devices.DeviceTrust(r.Context(), tc.AuthenticatedUserID, tc.DeviceFingerprint); err == nil && dt != nil {
			tc.TrustedDevice = dt.Trusted
		}
	}
	return tc
}

// fingerprint recomputes the device fingerprint server-side from the raw
// signals. The client's fast digest is only compared, never trusted; a
// mismatch is a soft anomaly signal fed into risk scoring.
func (b *Builder) fingerprint(r *http.Request, tc *Context) {
	signals := Signals{
		UserAgent: r.UserAgent(),
		Locale:    r.Header.Get("Accept-Language"),
		Timezone:  r.Header.Get(HeaderTimezone),
		Screen:    r.Header.Get(HeaderScreen),
	}
	if !signals.HasMandatory() {
		// No fingerprint; authentication falls back to session identity.
		return
	}
	tc.DeviceFingerprint = StrongDigest(signals)
	clientDigest := r.Header.Get(HeaderDeviceFingerprint)
	if !VerifyFastDigest(signals, clientDigest) {
		tc.FingerprintMismatch = true
		slog.Debug("Client fingerprint digest mismatch",
			"correlationId", tc.CorrelationID)
	}
}

// authenticate resolves the bearer token and session registry into an
// identity and auth level. Invalid or revoked sessions leave the context
// unauthenticated; downstream policy checks then fail closed.
func (b *Builder) authenticate(r *http.Request, tc *Context) {
	if b.verifier == nil {
		return
	}
	tokenString := bearerToken(r)
	if tokenString == "" {
		return
	}
	claims, err := b.verifier.Verify(tokenString)
	if err != nil {
		slog.Warn("Session token rejected", "correlationId", tc.CorrelationID, "error", err)
		return
	}

	now := time.Now()
	if claims.SessionID != "" {
		tc.SessionID = claims.SessionID
	}
	if b.store != nil && tc.SessionID != "" {
		session, err := b.store.Get(r.Context(), tc.SessionID)
		if err == nil && session.Revoked {
			slog.Warn("Revoked session presented", "sessionId", tc.SessionID, "correlationId", tc.CorrelationID)
			return
		}
	}

	tc.AuthenticatedUserID = claims.Subject
	tc.Role = claims.Role
	tc.AuthLevel = b.verifier.AuthLevel(claims, now)
	tc.SessionFresh = b.verifier.IsFresh(claims, now)
	if tc.SessionFresh && tc.AuthLevel < models.AuthLevelFreshSession && tc.AuthLevel >= models.AuthLevelMFA {
		tc.AuthLevel = models.AuthLevelFreshSession
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ClientIP extracts the client address, preferring the first X-Forwarded-For
// entry set by the reverse proxy
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
