package scoring

import (
	"io"
	"testing"

	"dealflow_backend/internal/underwriting"
	"dealflow_backend/platform/logger"
)

const msgScoreMismatch = "expected score %d, got %d"

func noMortgage() *underwriting.Calculator {
	return underwriting.NewCalculator(20000, nil)
}

func TestFlipScenarioLowerTier(t *testing.T) {
	in := underwriting.Inputs{OfferPrice: 180000, RehabCosts: 20000, PotentialRent: 2000, ARV: 250000}

	flip := Flip(in)
	if flip.ARVRatio != 0.8 {
		t.Fatalf("expected arv ratio 0.8, got %v", flip.ARVRatio)
	}
	if flip.ARVRatioPoints == 10 {
		t.Fatal("0.80 must not reach the top tier")
	}
	if flip.ARVRatioPoints != 7 {
		t.Fatalf(msgScoreMismatch, 7, flip.ARVRatioPoints)
	}
}

func TestFlipStepFunction(t *testing.T) {
	tests := []struct {
		name string
		cost float64
		arv  float64
		want int
	}{
		{name: "exactly 75", cost: 75000, arv: 100000, want: 10},
		{name: "below 75", cost: 60000, arv: 100000, want: 10},
		{name: "just above 75", cost: 75001, arv: 100000, want: 7},
		{name: "exactly 80", cost: 80000, arv: 100000, want: 7},
		{name: "exactly 85", cost: 85000, arv: 100000, want: 4},
		{name: "above 85", cost: 85001, arv: 100000, want: 0},
		{name: "unknown arv", cost: 50000, arv: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flip(underwriting.Inputs{OfferPrice: tt.cost, ARV: tt.arv}).Score
			if got != tt.want {
				t.Fatalf(msgScoreMismatch, tt.want, got)
			}
		})
	}
}

func TestHoldSubScores(t *testing.T) {
	tests := []struct {
		name         string
		rent         float64
		units        int
		wantCashflow int
		wantRatio    int
	}{
		// cost 200000, no mortgage: cashflow == rent
		{name: "perfect", rent: 2000, units: 1, wantCashflow: 8, wantRatio: 2},
		{name: "partial ratio", rent: 1600, units: 1, wantCashflow: 8, wantRatio: 1},
		{name: "per unit drops tier", rent: 2000, units: 6, wantCashflow: 6, wantRatio: 2},
		{name: "thin", rent: 120, units: 1, wantCashflow: 2, wantRatio: 0},
		{name: "nothing", rent: 0, units: 1, wantCashflow: 0, wantRatio: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := underwriting.Inputs{OfferPrice: 180000, RehabCosts: 20000, PotentialRent: tt.rent, ARV: 250000, Units: tt.units}
			got := Hold(noMortgage(), in)
			if got.CashflowPoints != tt.wantCashflow {
				t.Fatalf("cashflow: "+msgScoreMismatch, tt.wantCashflow, got.CashflowPoints)
			}
			if got.RentRatioPoints != tt.wantRatio {
				t.Fatalf("rent ratio: "+msgScoreMismatch, tt.wantRatio, got.RentRatioPoints)
			}
			if got.Score != tt.wantCashflow+tt.wantRatio {
				t.Fatalf(msgScoreMismatch, tt.wantCashflow+tt.wantRatio, got.Score)
			}
		})
	}
}

func TestHoldNegativeCashflowClampsToZero(t *testing.T) {
	calc := underwriting.NewCalculator(20000, func(p float64) float64 { return 5000 })
	got := Hold(calc, underwriting.Inputs{OfferPrice: 100000, PotentialRent: 500, ARV: 150000})
	if got.Score != 0 {
		t.Fatalf(msgScoreMismatch, 0, got.Score)
	}
	if got.MonthlyCashflow >= 0 {
		t.Fatalf("expected negative cashflow, got %v", got.MonthlyCashflow)
	}
}

func TestHoldTargetReachesPerfect(t *testing.T) {
	calc := underwriting.NewCalculator(20000, underwriting.FixedRateMortgage(0.07, 30))
	in := underwriting.Inputs{OfferPrice: 180000, RehabCosts: 20000, PotentialRent: 1500, ARV: 250000, Units: 2}

	target := HoldTargetFor(calc, in)
	if target.AlreadyPerfect {
		t.Fatal("expected current inputs to fall short")
	}

	in.PotentialRent = target.MinRent
	if got := Hold(calc, in).Score; got != MaxScore {
		t.Fatalf("target rent %v should score %d, got %d", target.MinRent, MaxScore, got)
	}

	in.PotentialRent = target.MinRent - 1
	if got := Hold(calc, in).Score; got == MaxScore {
		t.Fatalf("rent below target should not be perfect, got %d", got)
	}
}

func TestFlipTargetInvertsTopTier(t *testing.T) {
	in := underwriting.Inputs{OfferPrice: 180000, RehabCosts: 20000, ARV: 250000}
	target := FlipTargetFor(in)

	if target.MinARV == nil || *target.MinARV != 266667 {
		t.Fatalf("expected min arv 266667, got %v", target.MinARV)
	}
	if target.MaxOffer != 167500 {
		t.Fatalf("expected max offer 167500, got %v", target.MaxOffer)
	}

	atMinARV := in
	atMinARV.ARV = *target.MinARV
	if got := Flip(atMinARV).Score; got != MaxScore {
		t.Fatalf(msgScoreMismatch, MaxScore, got)
	}

	atMaxOffer := in
	atMaxOffer.OfferPrice = target.MaxOffer
	if got := Flip(atMaxOffer).Score; got != MaxScore {
		t.Fatalf(msgScoreMismatch, MaxScore, got)
	}
}

func TestFlipTargetWithoutCostHasNoMinARV(t *testing.T) {
	in := underwriting.Inputs{ARV: 250000}
	target := FlipTargetFor(in)

	if target.MinARV != nil {
		t.Fatalf("expected no min arv at zero cost, got %v", *target.MinARV)
	}
	if got := Flip(in).Score; got != 0 {
		t.Fatalf(msgScoreMismatch, 0, got)
	}
	if target.MaxOffer != 187500 {
		t.Fatalf("expected max offer 187500, got %v", target.MaxOffer)
	}
}

func TestLegacyTable(t *testing.T) {
	in := underwriting.Inputs{OfferPrice: 120000, RehabCosts: 20000, PotentialRent: 1500, ARV: 210000}
	got := Legacy(noMortgage(), in)

	// rent ratio 1.07% -> 4, arv ratio 0.667 -> 4, equity 210000-120000 = 90000 -> 2
	if got.RentRatioPoints != 4 || got.ARVRatioPoints != 4 || got.HomeEquityPoints != 2 {
		t.Fatalf("unexpected legacy breakdown: %+v", got)
	}
	if got.Score != 10 {
		t.Fatalf(msgScoreMismatch, 10, got.Score)
	}
}

func TestEvaluateLeadScoreFollowsStrategy(t *testing.T) {
	svc := New(noMortgage(), logger.NewWithWriter("test", io.Discard))
	in := underwriting.Inputs{OfferPrice: 180000, RehabCosts: 20000, PotentialRent: 2000, ARV: 250000}

	flipFirst := svc.Evaluate(in, nil, VariantCurrent)
	if flipFirst.LeadScore != flipFirst.Flip.Score {
		t.Fatalf("expected lead score to follow flip, got %d", flipFirst.LeadScore)
	}
	if flipFirst.Legacy != nil {
		t.Fatal("legacy breakdown should only be computed on request")
	}

	holdFirst := svc.Evaluate(in, []string{"Strategy:Hold"}, VariantLegacy)
	if holdFirst.LeadScore != holdFirst.Hold.Score {
		t.Fatalf("expected lead score to follow hold, got %d", holdFirst.LeadScore)
	}
	if holdFirst.Legacy == nil {
		t.Fatal("expected legacy breakdown")
	}
}
