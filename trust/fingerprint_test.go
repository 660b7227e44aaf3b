package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleSignals() Signals {
	return Signals{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		Locale:    "pt-PT",
		Timezone:  "Europe/Lisbon",
		Screen:    "1920x1080x24",
	}
}

func TestDigestsAreDeterministic(t *testing.T) {
	s := sampleSignals()
	assert.Equal(t, FastDigest(s), FastDigest(s))
	assert.Equal(t, StrongDigest(s), StrongDigest(s))
	assert.Len(t, FastDigest(s), 16)
	assert.Len(t, StrongDigest(s), 64)
}

func TestDigestChangesWithAnySignal(t *testing.T) {
	base := sampleSignals()

	variants := []Signals{
		{UserAgent: "other-agent", Locale: base.Locale, Timezone: base.Timezone, Screen: base.Screen},
		{UserAgent: base.UserAgent, Locale: "en-US", Timezone: base.Timezone, Screen: base.Screen},
		{UserAgent: base.UserAgent, Locale: base.Locale, Timezone: "Asia/Tokyo", Screen: base.Screen},
		{UserAgent: base.UserAgent, Locale: base.Locale, Timezone: base.Timezone, Screen: "1280x720x24"},
	}
	for _, v := range variants {
		assert.NotEqual(t, FastDigest(base), FastDigest(v))
		assert.NotEqual(t, StrongDigest(base), StrongDigest(v))
	}
}

func TestHasMandatory(t *testing.T) {
	assert.True(t, sampleSignals().HasMandatory())
	assert.False(t, Signals{Locale: "pt-PT"}.HasMandatory())
}

func TestVerifyFastDigest(t *testing.T) {
	s := sampleSignals()

	t.Run("matching digest verifies", func(t *testing.T) {
		assert.True(t, VerifyFastDigest(s, FastDigest(s)))
	})

	t.Run("wrong digest fails", func(t *testing.T) {
		assert.False(t, VerifyFastDigest(s, "deadbeefdeadbeef"))
	})

	t.Run("absent client digest is not a mismatch", func(t *testing.T) {
		assert.True(t, VerifyFastDigest(s, ""))
	})

	t.Run("no mandatory signals is not a mismatch", func(t *testing.T) {
		assert.True(t, VerifyFastDigest(Signals{}, "deadbeefdeadbeef"))
	})
}
