package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestValidator(adjust bool) *Validator {
	return NewValidator(ValidatorConfig{
		AdjustFlagged: adjust,
		AreaAverages:  map[string]float64{"78701": 400000},
		Now:           func() time.Time { return fixedNow },
	})
}

func TestSeverityBoundaries(t *testing.T) {
	tests := []struct {
		dev  float64
		want Severity
	}{
		{dev: 0, want: SeverityAcceptable},
		{dev: 25, want: SeverityAcceptable},
		{dev: -25, want: SeverityAcceptable},
		{dev: 25.004, want: SeverityAcceptable},
		{dev: 25.01, want: SeverityCaution},
		{dev: 40, want: SeverityCaution},
		{dev: -40, want: SeverityCaution},
		{dev: 40.01, want: SeverityFlagged},
		{dev: -60, want: SeverityFlagged},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityOf(tt.dev), "deviation %v", tt.dev)
	}
}

func TestValidateAdjustsFlaggedOverestimate(t *testing.T) {
	v := newTestValidator(true)
	bench := Benchmarks{VerifiedMarket: ptr(200000.0)}

	got := v.Validate(300000, Subject{Address: "9 Oak St, Austin TX 78701"}, bench, nil)

	require.NotNil(t, got.DeviationPercent)
	assert.InDelta(t, 50, *got.DeviationPercent, 1e-9)
	require.NotNil(t, got.Severity)
	assert.Equal(t, SeverityFlagged, *got.Severity)
	assert.Equal(t, "danger", got.Tone)
	assert.Equal(t, 300000.0, got.OriginalARV)
	require.NotNil(t, got.AdjustedARV)
	assert.Equal(t, 250000.0, *got.AdjustedARV)
	assert.Equal(t, 250000.0, got.FinalARV())
	assert.Equal(t, "verified_market", got.PrimaryBenchmarkSource)
	assert.Equal(t, 400000.0, *got.Benchmarks.AreaAverage)
}

func TestValidateNeverAdjustsUnderestimate(t *testing.T) {
	v := newTestValidator(true)
	got := v.Validate(100000, Subject{}, Benchmarks{VerifiedMarket: ptr(200000.0)}, nil)

	require.NotNil(t, got.Severity)
	assert.Equal(t, SeverityFlagged, *got.Severity)
	assert.Nil(t, got.AdjustedARV)
	assert.Equal(t, 100000.0, got.FinalARV())
}

func TestValidateAdjustmentDisabled(t *testing.T) {
	v := newTestValidator(false)
	got := v.Validate(300000, Subject{}, Benchmarks{VerifiedMarket: ptr(200000.0)}, nil)
	assert.Nil(t, got.AdjustedARV)
}

func TestValidateFallsBackToAreaAverage(t *testing.T) {
	v := newTestValidator(true)
	got := v.Validate(420000, Subject{Address: "9 Oak St, Austin TX 78701-1234"}, Benchmarks{}, nil)

	assert.Equal(t, "area_average", got.PrimaryBenchmarkSource)
	require.NotNil(t, got.Severity)
	assert.Equal(t, SeverityAcceptable, *got.Severity)
}

func TestValidateWithoutBenchmark(t *testing.T) {
	v := newTestValidator(true)
	got := v.Validate(420000, Subject{Address: "9 Oak St"}, Benchmarks{}, nil)

	assert.Nil(t, got.DeviationPercent)
	assert.Nil(t, got.Severity)
	assert.Contains(t, got.Flags, "no benchmark available")
	assert.Equal(t, 0, got.CompQualityScore)
	assert.Equal(t, CompPoor, got.CompQualitySeverity)
}

func TestPlaceholderAddresses(t *testing.T) {
	v := newTestValidator(true)

	for _, addr := range []string{"123 Main St", "Sample Property", "N/A", "TBD", ""} {
		assert.True(t, v.IsPlaceholderAddress(addr), addr)
	}
	for _, addr := range []string{"1234 Maintenance Rd", "55 Testament Ave", "88 Elm St"} {
		assert.False(t, v.IsPlaceholderAddress(addr), addr)
	}
}

func TestCompQuality(t *testing.T) {
	v := newTestValidator(true)
	subject := Subject{Latitude: ptr(30.2672), Longitude: ptr(-97.7431)}
	recent := fixedNow.AddDate(0, -2, 0)

	comps := []ComparableSale{
		{Address: "10 Elm St", SalePrice: 300000, SaleDate: recent, DistanceMiles: ptr(0.3)},
		{Address: "12 Elm St", SalePrice: 310000, SaleDate: recent, DistanceMiles: ptr(0.8)},
		{Address: "14 Elm St", SalePrice: 290000, SaleDate: fixedNow.AddDate(-2, 0, 0), DistanceMiles: ptr(1.5)},
		// same coordinates as the subject, so distance is filled in as 0
		{Address: "16 Elm St", SalePrice: 305000, SaleDate: recent, Latitude: ptr(30.2672), Longitude: ptr(-97.7431)},
		{Address: "123 Main St", SalePrice: 1, SaleDate: recent, DistanceMiles: ptr(0.1)},
	}

	screened := v.ScreenComps(subject, comps)
	require.Len(t, screened, 5)
	assert.True(t, screened[2].Stale)
	assert.True(t, screened[4].Suspicious)
	require.NotNil(t, screened[3].DistanceMiles)
	assert.Equal(t, 0.0, *screened[3].DistanceMiles)
	assert.Nil(t, comps[3].DistanceMiles, "input comps must not be modified")

	// 4 usable: count 32, recency 3/4*30 = 22.5, distance (30+20+10+30)/4 = 22.5
	score, sev := CompQuality(screened)
	assert.Equal(t, 77, score)
	assert.Equal(t, CompGood, sev)

	got := v.Validate(300000, subject, Benchmarks{VerifiedMarket: ptr(300000.0)}, comps)
	assert.Equal(t, 77, got.CompQualityScore)
	assert.Len(t, got.Comparables, 5)
	assert.Contains(t, got.Flags, "1 comparable sale(s) have placeholder-looking addresses")
}

func TestCompQualityAllSuspicious(t *testing.T) {
	score, sev := CompQuality([]ComparableSale{{Suspicious: true}, {Suspicious: true}})
	assert.Equal(t, 0, score)
	assert.Equal(t, CompPoor, sev)
}

func TestDistanceFromCoordinates(t *testing.T) {
	// roughly one mile apart along a meridian
	subject := Subject{Latitude: ptr(30.0), Longitude: ptr(-97.0)}
	c := ComparableSale{Latitude: ptr(30.0 + 1.0/69.05), Longitude: ptr(-97.0)}
	d := distanceMiles(subject, c)
	require.NotNil(t, d)
	assert.InDelta(t, 1.0, *d, 0.02)
}
