package risk

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/Hung6066/IVF-sub008/audit"
	"github.com/Hung6066/IVF-sub008/models"
)

// Fixed signal weights. Signals are independent and combine additively; the
// total is clamped to [0,100].
const (
	WeightKnownBadIP          = 40
	WeightBruteForce          = 35
	WeightImpossibleTravel    = 30
	WeightVpnTor              = 25
	WeightNewFingerprint      = 15
	WeightFingerprintMismatch = 10
)

// maxTravelSpeedKmh is the fastest plausible travel between two logins.
// Anything faster is an impossible-travel anomaly.
const maxTravelSpeedKmh = 900.0

// Input carries the request signals the evaluator scores
type Input struct {
	IPAddress         string
	Username          string
	UserAgent         string
	Country           string
	RequestPath       string
	DeviceFingerprint string
	// FingerprintMismatch is set by the trust context builder when the
	// client-supplied fast digest does not match the server recomputation.
	// It contributes to the score rather than blocking outright.
	FingerprintMismatch bool
}

// Evaluator scores requests into threat assessments. It is read-heavy and
// tolerates eventual consistency in its event history.
type Evaluator struct {
	geo      GeoResolver
	intel    IntelProvider
	failures FailureWindow
	history  PrincipalHistory
	recorder audit.Recorder

	bruteForceThreshold int
}

// NewEvaluator wires the evaluator's signal sources
func NewEvaluator(geo GeoResolver, intel IntelProvider, failures FailureWindow, history PrincipalHistory, recorder audit.Recorder, bruteForceThreshold int) *Evaluator {
	if bruteForceThreshold <= 0 {
		bruteForceThreshold = 5
	}
	return &Evaluator{
		geo:                 geo,
		intel:               intel,
		failures:            failures,
		history:             history,
		recorder:            recorder,
		bruteForceThreshold: bruteForceThreshold,
	}
}

// Assess scores the request. Every assessment that reaches Medium or
// reclassifies the principal emits a SecurityEvent.
func (e *Evaluator) Assess(ctx context.Context, input Input) (*models.ThreatAssessment, error) {
	now := time.Now()
	score := 0
	var reasons []string
	bruteForce := false

	if e.intel.IsKnownBad(input.IPAddress) {
		score += WeightKnownBadIP
		reasons = append(reasons, "ip_reputation_bad")
	}
	if e.intel.IsVpnOrTor(input.IPAddress) {
		score += WeightVpnTor
		reasons = append(reasons, "vpn_or_tor")
	}

	location := e.geo.Lookup(input.IPAddress)

	var last *Observation
	if input.Username != "" {
		var err error
		last, err = e.history.Last(ctx, input.Username)
		if err != nil {
			// History being unavailable must not hide other signals;
			// treat the principal as unknown.
			slog.Warn("Principal history unavailable", "username", input.Username, "error", err)
			last = nil
		}

		if failureCount, err := e.failures.CountFailures(ctx, input.Username); err == nil {
			if failureCount >= e.bruteForceThreshold {
				score += WeightBruteForce
				reasons = append(reasons, "repeated_failure_velocity")
				bruteForce = true
			}
		} else {
			slog.Warn("Failure window unavailable", "username", input.Username, "error", err)
		}

		if last != nil && last.HasLocation && location.Known && !last.LastSeen.IsZero() {
			if impossibleTravel(last, location, now) {
				score += WeightImpossibleTravel
				reasons = append(reasons, "impossible_travel")
			}
		}

		if input.DeviceFingerprint != "" {
			if last == nil || !last.KnowsFingerprint(input.DeviceFingerprint) {
				score += WeightNewFingerprint
				reasons = append(reasons, "new_device_fingerprint")
			}
		}
	}

	if input.FingerprintMismatch {
		score += WeightFingerprintMismatch
		reasons = append(reasons, "fingerprint_mismatch")
	}

	score = clamp(score, 0, 100)
	level := models.RiskLevelFromScore(score)

	assessment := &models.ThreatAssessment{
		IPAddress: input.IPAddress,
		Username:  input.Username,
		RiskScore: score,
		RiskLevel: level.String(),
		Reasons:   reasons,
		CreatedAt: now,
	}

	e.emitEvents(input, assessment, last, bruteForce)
	e.saveObservation(ctx, input, location, last, level, now)

	return assessment, nil
}

// RecordFailure feeds an authentication/authorization failure into the
// brute-force window and logs it
func (e *Evaluator) RecordFailure(ctx context.Context, username, ipAddress string) {
	if username == "" {
		return
	}
	if err := e.failures.RecordFailure(ctx, username); err != nil {
		slog.Warn("Failed to record auth failure", "username", username, "error", err)
	}
	audit.RecordAsync(e.recorder, models.NewSecurityEvent(
		models.EventAuthLoginFailed, models.SeverityLow, ipAddress, nil,
	).WithUsername(username))
}

// Country resolves the request country for geo-fence checks
func (e *Evaluator) Country(ipAddress string) string {
	return e.geo.Lookup(ipAddress).Country
}

// IsVpnOrTor exposes the reputation check to the zero-trust stage
func (e *Evaluator) IsVpnOrTor(ipAddress string) bool {
	return e.intel.IsVpnOrTor(ipAddress)
}

// IPIntelligence computes the on-demand intelligence view for an address
func (e *Evaluator) IPIntelligence(ctx context.Context, ipAddress string) (*models.IpIntelligence, error) {
	events, err := e.recorder.Recent(ctx, models.EventFilter{
		IPAddress: ipAddress,
		Since:     time.Now().Add(-24 * time.Hour),
		Limit:     200,
	})
	if err != nil {
		return nil, err
	}
	denials := 0
	for _, ev := range events {
		if ev.IsBlocked {
			denials++
		}
	}
	return &models.IpIntelligence{
		IPAddress:     ipAddress,
		Country:       e.geo.Lookup(ipAddress).Country,
		KnownBad:      e.intel.IsKnownBad(ipAddress),
		VpnOrTor:      e.intel.IsVpnOrTor(ipAddress),
		RecentDenials: denials,
	}, nil
}

// DeviceTrust computes the on-demand device standing for a principal. A
// device is trusted once its fingerprint is in the principal's history.
func (e *Evaluator) DeviceTrust(ctx context.Context, username, fingerprint string) (*models.DeviceTrust, error) {
	last, err := e.history.Last(ctx, username)
	if err != nil {
		return nil, err
	}
	trusted := last != nil && last.KnowsFingerprint(fingerprint)
	dt := &models.DeviceTrust{
		Fingerprint: fingerprint,
		UserID:      username,
		Trusted:     trusted,
	}
	if last != nil {
		dt.FirstSeen = last.LastSeen
	}
	return dt, nil
}

func (e *Evaluator) emitEvents(input Input, assessment *models.ThreatAssessment, last *Observation, bruteForce bool) {
	level := models.ParseRiskLevel(assessment.RiskLevel)

	if level >= models.RiskLevelMedium {
		eventType := models.EventThreatDetected
		if bruteForce {
			eventType = models.EventThreatBruteForce
		}
		severity := models.SeverityMedium
		if level >= models.RiskLevelCritical {
			severity = models.SeverityCritical
		} else if level >= models.RiskLevelHigh {
			severity = models.SeverityHigh
		}
		audit.RecordAsync(e.recorder, models.NewSecurityEvent(eventType, severity, input.IPAddress, map[string]any{
			"riskScore":   assessment.RiskScore,
			"riskLevel":   assessment.RiskLevel,
			"reasons":     assessment.Reasons,
			"requestPath": input.RequestPath,
		}).WithUsername(input.Username))
	}

	if last != nil && last.LastLevel != "" && last.LastLevel != assessment.RiskLevel {
		audit.RecordAsync(e.recorder, models.NewSecurityEvent(
			models.EventRiskReclassified, models.SeverityInfo, input.IPAddress, map[string]any{
				"previousLevel": last.LastLevel,
				"currentLevel":  assessment.RiskLevel,
			}).WithUsername(input.Username))
	}
}

func (e *Evaluator) saveObservation(ctx context.Context, input Input, location Location, last *Observation, level models.RiskLevel, now time.Time) {
	if input.Username == "" {
		return
	}
	obs := &Observation{
		Country:     location.Country,
		Latitude:    location.Latitude,
		Longitude:   location.Longitude,
		HasLocation: location.Known,
		LastSeen:    now,
		LastLevel:   level.String(),
	}
	if last != nil {
		obs.Fingerprints = last.Fingerprints
		if !location.Known {
			obs.Country = last.Country
			obs.Latitude = last.Latitude
			obs.Longitude = last.Longitude
			obs.HasLocation = last.HasLocation
		}
	}
	if input.DeviceFingerprint != "" && (last == nil || !last.KnowsFingerprint(input.DeviceFingerprint)) {
		obs.Fingerprints = append(obs.Fingerprints, input.DeviceFingerprint)
	}
	if err := e.history.Save(ctx, input.Username, obs); err != nil {
		slog.Warn("Failed to save principal history", "username", input.Username, "error", err)
	}
}

// impossibleTravel reports whether the principal would have had to travel
// faster than maxTravelSpeedKmh to appear at the new location
func impossibleTravel(last *Observation, current Location, now time.Time) bool {
	elapsed := now.Sub(last.LastSeen).Hours()
	if elapsed <= 0 {
		elapsed = 1.0 / 3600 // sub-second gap, assume one second
	}
	distance := haversineKm(last.Latitude, last.Longitude, current.Latitude, current.Longitude)
	if distance < 50 {
		return false
	}
	return distance/elapsed > maxTravelSpeedKmh
}

// haversineKm computes the great-circle distance between two coordinates
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)

	lat1 = lat1 * (math.Pi / 180.0)
	lat2 = lat2 * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
