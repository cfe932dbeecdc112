package service

import (
	"math"
	"testing"
	"time"

	"domo/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransformKind(t *testing.T) {
	k, err := ParseTransformKind("")
	require.NoError(t, err)
	assert.Equal(t, Identity, k)

	k, err = ParseTransformKind("minutes-of-local-day")
	require.NoError(t, err)
	assert.Equal(t, MinutesOfLocalDay, k)

	_, err = ParseTransformKind("cubic")
	assert.ErrorIs(t, err, errUnknownTransform)
}

func TestNewTransformTable(t *testing.T) {
	table, err := NewTransformTable([]config.ActuatorAttribute{
		{Actuator: "wakeup", Attribute: "hour", Transform: "hours-of-local-day"},
		{Actuator: "wakeup", Attribute: "duration", Transform: "minutes"},
	})
	require.NoError(t, err)
	assert.Equal(t, HoursOfLocalDay, table.Kind("wakeup", "hour"))
	assert.Equal(t, Minutes, table.Kind("wakeup", "duration"))
	assert.Equal(t, Identity, table.Kind("wakeup", "enabled"))
	assert.Equal(t, Identity, table.Kind("colorlight", "mode"))

	_, err = NewTransformTable([]config.ActuatorAttribute{{Actuator: "a", Attribute: "b", Transform: "x"}})
	assert.ErrorIs(t, err, errUnknownTransform)
}

func TestToStored(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		kind    TransformKind
		raw     any
		current any
		want    float64
	}{
		{"logarithmic", Logarithmic, math.Log(100), nil, 100},
		{"minutes", Minutes, 5, nil, 300},
		{"local hour", HoursOfLocalDay, 9, 6.0 * 3600, 7 * 3600},           // 08:00 local -> 09:00 local
		{"local minute", MinutesOfLocalDay, 30, 6.0 * 3600, 6*3600 + 1800}, // 08:00 local -> 08:30 local
		{"wraps past midnight", HoursOfLocalDay, 2, 23.0 * 3600, 0},        // 01:00 local -> 02:00 local
		{"missing current", HoursOfLocalDay, 3, nil, 3600},                 // 02:00 local -> 03:00 local
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToStored(tt.kind, tt.raw, tt.current, now, plus2)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	got, err := ToStored(Identity, "rgb", nil, now, plus2)
	require.NoError(t, err)
	assert.Equal(t, "rgb", got)

	_, err = ToStored(Minutes, true, nil, now, plus2)
	assert.ErrorIs(t, err, errNotNumeric)
	assert.True(t, IsValueError(err))
}

func TestToDisplay(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	assert.InDelta(t, 2.0, ToDisplay(Logarithmic, math.Exp(2), now, plus2), 1e-9)
	assert.InDelta(t, 1.5, ToDisplay(Minutes, 90, now, plus2), 1e-9)
	assert.Equal(t, 8, ToDisplay(HoursOfLocalDay, 6.0*3600, now, plus2))
	assert.Equal(t, 30, ToDisplay(MinutesOfLocalDay, 6.0*3600+1800, now, plus2))
	assert.Equal(t, "hsv", ToDisplay(Identity, "hsv", now, plus2))
	assert.Equal(t, "n/a", ToDisplay(Minutes, "n/a", now, plus2))
}

func TestToStored_RoundTripsThroughDisplay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	stored, err := ToStored(HoursOfLocalDay, 7, 12.0*3600, now, loc)
	require.NoError(t, err)
	assert.Equal(t, 7, ToDisplay(HoursOfLocalDay, stored, now, loc))

	stored, err = ToStored(MinutesOfLocalDay, 45, stored, now, loc)
	require.NoError(t, err)
	assert.Equal(t, 45, ToDisplay(MinutesOfLocalDay, stored, now, loc))
	assert.Equal(t, 7, ToDisplay(HoursOfLocalDay, stored, now, loc))
}
