package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hung6066/IVF-sub008/audit"
	"github.com/Hung6066/IVF-sub008/models"
)

func newTestEvaluator(geo GeoResolver, intel IntelProvider) (*Evaluator, *MemoryWindow, *MemoryHistory, *audit.MemoryRecorder) {
	if geo == nil {
		geo = NoopResolver{}
	}
	if intel == nil {
		intel = NewStaticIntel(nil, nil)
	}
	failures := NewMemoryWindow(10 * time.Minute)
	history := NewMemoryHistory()
	recorder := audit.NewMemoryRecorder()
	return NewEvaluator(geo, intel, failures, history, recorder, 5), failures, history, recorder
}

func TestAssessCleanRequestIsLow(t *testing.T) {
	e, _, _, _ := newTestEvaluator(nil, nil)

	a, err := e.Assess(context.Background(), Input{IPAddress: "203.0.113.1"})
	require.NoError(t, err)
	assert.Equal(t, 0, a.RiskScore)
	assert.Equal(t, models.RiskLevelLow.String(), a.RiskLevel)
	assert.Empty(t, a.Reasons)
}

func TestAssessSignalWeights(t *testing.T) {
	intel := NewStaticIntel([]string{"198.51.100.7"}, []string{"192.0.2.0/24"})

	t.Run("known bad ip", func(t *testing.T) {
		e, _, _, _ := newTestEvaluator(nil, intel)
		a, err := e.Assess(context.Background(), Input{IPAddress: "198.51.100.7"})
		require.NoError(t, err)
		assert.Equal(t, WeightKnownBadIP, a.RiskScore)
		assert.Contains(t, a.Reasons, "ip_reputation_bad")
	})

	t.Run("vpn or tor exit", func(t *testing.T) {
		e, _, _, _ := newTestEvaluator(nil, intel)
		a, err := e.Assess(context.Background(), Input{IPAddress: "192.0.2.55"})
		require.NoError(t, err)
		assert.Equal(t, WeightVpnTor, a.RiskScore)
		assert.Contains(t, a.Reasons, "vpn_or_tor")
	})

	t.Run("new fingerprint for known principal", func(t *testing.T) {
		e, _, _, _ := newTestEvaluator(nil, nil)
		a, err := e.Assess(context.Background(), Input{
			IPAddress:         "203.0.113.1",
			Username:          "dr.silva",
			DeviceFingerprint: "fp-new",
		})
		require.NoError(t, err)
		assert.Equal(t, WeightNewFingerprint, a.RiskScore)
		assert.Contains(t, a.Reasons, "new_device_fingerprint")
	})

	t.Run("fingerprint mismatch", func(t *testing.T) {
		e, _, _, _ := newTestEvaluator(nil, nil)
		a, err := e.Assess(context.Background(), Input{
			IPAddress:           "203.0.113.1",
			FingerprintMismatch: true,
		})
		require.NoError(t, err)
		assert.Equal(t, WeightFingerprintMismatch, a.RiskScore)
		assert.Contains(t, a.Reasons, "fingerprint_mismatch")
	})
}

func TestAssessKnownFingerprintScoresNothing(t *testing.T) {
	e, _, history, _ := newTestEvaluator(nil, nil)
	require.NoError(t, history.Save(context.Background(), "dr.silva", &Observation{
		Fingerprints: []string{"fp-known"},
		LastSeen:     time.Now(),
		LastLevel:    models.RiskLevelLow.String(),
	}))

	a, err := e.Assess(context.Background(), Input{
		IPAddress:         "203.0.113.1",
		Username:          "dr.silva",
		DeviceFingerprint: "fp-known",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, a.RiskScore)
}

func TestAssessBruteForce(t *testing.T) {
	e, failures, _, recorder := newTestEvaluator(nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, failures.RecordFailure(ctx, "dr.silva"))
	}

	a, err := e.Assess(ctx, Input{IPAddress: "203.0.113.1", Username: "dr.silva"})
	require.NoError(t, err)
	assert.Equal(t, WeightBruteForce, a.RiskScore)
	assert.Contains(t, a.Reasons, "repeated_failure_velocity")
	assert.Equal(t, models.RiskLevelMedium.String(), a.RiskLevel)

	// Medium via brute force emits the brute-force event type.
	assert.Eventually(t, func() bool {
		for _, ev := range recorder.Events() {
			if ev.EventType == models.EventThreatBruteForce {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestAssessImpossibleTravel(t *testing.T) {
	geo := StaticResolver{Locations: map[string]Location{
		// Lisbon and Tokyo, roughly 11000 km apart.
		"203.0.113.1": {Country: "PT", Latitude: 38.72, Longitude: -9.14, Known: true},
		"203.0.113.2": {Country: "JP", Latitude: 35.68, Longitude: 139.69, Known: true},
	}}

	t.Run("minutes between continents is impossible", func(t *testing.T) {
		e, _, history, _ := newTestEvaluator(geo, nil)
		require.NoError(t, history.Save(context.Background(), "dr.silva", &Observation{
			Country: "PT", Latitude: 38.72, Longitude: -9.14, HasLocation: true,
			LastSeen: time.Now().Add(-10 * time.Minute), LastLevel: models.RiskLevelLow.String(),
		}))

		a, err := e.Assess(context.Background(), Input{IPAddress: "203.0.113.2", Username: "dr.silva"})
		require.NoError(t, err)
		assert.Contains(t, a.Reasons, "impossible_travel")
		assert.Equal(t, WeightImpossibleTravel, a.RiskScore)
	})

	t.Run("a day between continents is plausible", func(t *testing.T) {
		e, _, history, _ := newTestEvaluator(geo, nil)
		require.NoError(t, history.Save(context.Background(), "dr.silva", &Observation{
			Country: "PT", Latitude: 38.72, Longitude: -9.14, HasLocation: true,
			LastSeen: time.Now().Add(-24 * time.Hour), LastLevel: models.RiskLevelLow.String(),
		}))

		a, err := e.Assess(context.Background(), Input{IPAddress: "203.0.113.2", Username: "dr.silva"})
		require.NoError(t, err)
		assert.NotContains(t, a.Reasons, "impossible_travel")
	})

	t.Run("short hops are ignored", func(t *testing.T) {
		nearby := StaticResolver{Locations: map[string]Location{
			"203.0.113.3": {Country: "PT", Latitude: 38.73, Longitude: -9.15, Known: true},
		}}
		e, _, history, _ := newTestEvaluator(nearby, nil)
		require.NoError(t, history.Save(context.Background(), "dr.silva", &Observation{
			Country: "PT", Latitude: 38.72, Longitude: -9.14, HasLocation: true,
			LastSeen: time.Now().Add(-time.Second), LastLevel: models.RiskLevelLow.String(),
		}))

		a, err := e.Assess(context.Background(), Input{IPAddress: "203.0.113.3", Username: "dr.silva"})
		require.NoError(t, err)
		assert.NotContains(t, a.Reasons, "impossible_travel")
	})
}

func TestAssessScoreIsClamped(t *testing.T) {
	intel := NewStaticIntel([]string{"198.51.100.7"}, []string{"198.51.100.7"})
	geo := StaticResolver{Locations: map[string]Location{
		"198.51.100.7": {Country: "JP", Latitude: 35.68, Longitude: 139.69, Known: true},
	}}
	e, failures, history, _ := newTestEvaluator(geo, intel)
	ctx := context.Background()

	require.NoError(t, history.Save(ctx, "dr.silva", &Observation{
		Country: "PT", Latitude: 38.72, Longitude: -9.14, HasLocation: true,
		LastSeen: time.Now().Add(-5 * time.Minute), LastLevel: models.RiskLevelLow.String(),
	}))
	for i := 0; i < 6; i++ {
		require.NoError(t, failures.RecordFailure(ctx, "dr.silva"))
	}

	// 40+25+35+30+15+10 would be 155 without clamping.
	a, err := e.Assess(ctx, Input{
		IPAddress:           "198.51.100.7",
		Username:            "dr.silva",
		DeviceFingerprint:   "fp-new",
		FingerprintMismatch: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, a.RiskScore)
	assert.Equal(t, models.RiskLevelCritical.String(), a.RiskLevel)
}

func TestAssessReclassificationEvent(t *testing.T) {
	intel := NewStaticIntel([]string{"198.51.100.7"}, nil)
	e, _, history, recorder := newTestEvaluator(nil, intel)
	ctx := context.Background()

	require.NoError(t, history.Save(ctx, "dr.silva", &Observation{
		LastSeen: time.Now().Add(-time.Hour), LastLevel: models.RiskLevelLow.String(),
	}))

	a, err := e.Assess(ctx, Input{IPAddress: "198.51.100.7", Username: "dr.silva"})
	require.NoError(t, err)
	assert.Equal(t, models.RiskLevelMedium.String(), a.RiskLevel)

	assert.Eventually(t, func() bool {
		for _, ev := range recorder.Events() {
			if ev.EventType == models.EventRiskReclassified {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestAssessSavesObservation(t *testing.T) {
	e, _, history, _ := newTestEvaluator(nil, nil)
	ctx := context.Background()

	_, err := e.Assess(ctx, Input{
		IPAddress:         "203.0.113.1",
		Username:          "dr.silva",
		DeviceFingerprint: "fp-1",
	})
	require.NoError(t, err)

	obs, err := history.Last(ctx, "dr.silva")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.True(t, obs.KnowsFingerprint("fp-1"))

	// Second assessment with the same fingerprint scores clean.
	a, err := e.Assess(ctx, Input{
		IPAddress:         "203.0.113.1",
		Username:          "dr.silva",
		DeviceFingerprint: "fp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, a.RiskScore)
}

func TestRecordFailureFeedsWindow(t *testing.T) {
	e, failures, _, recorder := newTestEvaluator(nil, nil)
	ctx := context.Background()

	e.RecordFailure(ctx, "dr.silva", "203.0.113.1")
	count, err := failures.CountFailures(ctx, "dr.silva")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Eventually(t, func() bool {
		for _, ev := range recorder.Events() {
			if ev.EventType == models.EventAuthLoginFailed {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestRiskLevelBuckets(t *testing.T) {
	assert.Equal(t, models.RiskLevelLow, models.RiskLevelFromScore(0))
	assert.Equal(t, models.RiskLevelLow, models.RiskLevelFromScore(24))
	assert.Equal(t, models.RiskLevelMedium, models.RiskLevelFromScore(25))
	assert.Equal(t, models.RiskLevelMedium, models.RiskLevelFromScore(49))
	assert.Equal(t, models.RiskLevelHigh, models.RiskLevelFromScore(50))
	assert.Equal(t, models.RiskLevelHigh, models.RiskLevelFromScore(74))
	assert.Equal(t, models.RiskLevelCritical, models.RiskLevelFromScore(75))
	assert.Equal(t, models.RiskLevelCritical, models.RiskLevelFromScore(100))
}

func TestHaversineKm(t *testing.T) {
	// Lisbon to Madrid is about 500 km.
	d := haversineKm(38.72, -9.14, 40.42, -3.70)
	assert.InDelta(t, 500, d, 20)

	assert.Zero(t, haversineKm(38.72, -9.14, 38.72, -9.14))
}
