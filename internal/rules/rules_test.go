package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caresched/internal/model"
)

func rule(id string, cat model.RuleCategory, priority int, createdAt time.Time, payload string) model.Rule {
	return model.Rule{
		ID:        id,
		Category:  cat,
		Priority:  priority,
		Active:    true,
		Payload:   []byte(payload),
		CreatedAt: createdAt,
	}
}

func TestDecodeOrdering(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	decoded := Decode([]model.Rule{
		rule("r-old-low", model.RuleGenderPairing, 1, t0, `{"pairing":"same"}`),
		rule("r-new-high", model.RuleGenderPairing, 10, t0.Add(2*time.Hour), `{"pairing":"same"}`),
		rule("r-old-high", model.RuleGenderPairing, 10, t0.Add(time.Hour), `{"pairing":"same"}`),
		{ID: "r-inactive", Category: model.RuleGenderPairing, Priority: 99, Payload: []byte(`{"pairing":"same"}`), CreatedAt: t0},
	})

	require.Len(t, decoded, 3)
	// Priority descending, then creation order ascending.
	assert.Equal(t, "r-old-high", decoded[0].ID)
	assert.Equal(t, "r-new-high", decoded[1].ID)
	assert.Equal(t, "r-old-low", decoded[2].ID)
}

func TestDecodePayloads(t *testing.T) {
	t0 := time.Now()

	decoded := Decode([]model.Rule{
		rule("gp", model.RuleGenderPairing, 5, t0, `{"pairing":"same"}`),
		rule("ss", model.RuleSessionShape, 4, t0, `{"min_gap_minutes":15,"max_per_practitioner_per_day":4}`),
		rule("av", model.RuleAvailability, 3, t0, `{"weekday":3,"start_time":"12:00","end_time":"13:00"}`),
		rule("sp", model.RuleSpecificPairing, 2, t0, `{"client_id":"c1","practitioner_id":"p1","affinity":"prefer"}`),
		rule("ce", model.RuleCertification, 1, t0, `{"client_id":"c1","certifications":["emdr"]}`),
	})

	require.Len(t, decoded, 5)
	require.NotNil(t, decoded[0].GenderPairing)
	assert.Equal(t, "same", decoded[0].GenderPairing.Pairing)

	require.NotNil(t, decoded[1].SessionShape)
	assert.Equal(t, 15, decoded[1].SessionShape.MinGapMinutes)
	assert.Equal(t, 4, decoded[1].SessionShape.MaxPerPractitionerPerDay)

	require.NotNil(t, decoded[2].Availability)
	require.NotNil(t, decoded[2].Availability.Weekday)
	assert.Equal(t, 3, *decoded[2].Availability.Weekday)

	require.NotNil(t, decoded[3].SpecificPairing)
	require.NotNil(t, decoded[4].Certification)
}

func TestMalformedPayloadsAreInert(t *testing.T) {
	t0 := time.Now()

	decoded := Decode([]model.Rule{
		rule("bad-json", model.RuleGenderPairing, 9, t0, `{pairing:}`),
		rule("empty-shape", model.RuleSessionShape, 8, t0, `{}`),
		rule("bad-affinity", model.RuleSpecificPairing, 7, t0, `{"client_id":"c1","practitioner_id":"p1","affinity":"maybe"}`),
		rule("unknown-cat", model.RuleCategory("seasonal"), 6, t0, `{"anything":1}`),
	})

	require.Len(t, decoded, 4)
	for _, d := range decoded {
		assert.True(t, d.Inert, "rule %s should be inert", d.ID)
		assert.Nil(t, d.GenderPairing)
		assert.Nil(t, d.SessionShape)
		assert.Nil(t, d.SpecificPairing)
		assert.Nil(t, d.Certification)
	}
}
