package scoring

import (
	"math"

	"dealflow_backend/internal/underwriting"
)

const (
	// MaxScore is the ceiling of both the Hold and Flip scales.
	MaxScore = 10

	// Top-tier breakpoints. The inverse targets solve against these.
	perfectCashflowPerUnit = 500.0
	perfectRentRatio       = 0.010
	perfectARVRatio        = 0.75

	// ratioPrecision rounds ratios before they meet a breakpoint so that
	// 200000/250000 lands on 0.80 and not a hair above it.
	ratioPrecision = 1e6
)

// HoldBreakdown explains a Hold score.
type HoldBreakdown struct {
	Score           int     `json:"score"`
	CashflowPoints  int     `json:"cashflowPoints"`
	RentRatioPoints int     `json:"rentRatioPoints"`
	MonthlyCashflow float64 `json:"monthlyCashflow"`
	CashflowPerUnit float64 `json:"cashflowPerUnit"`
	RentRatio       float64 `json:"rentRatio"`
	Units           int     `json:"units"`
}

// FlipBreakdown explains a Flip score.
type FlipBreakdown struct {
	Score          int     `json:"score"`
	ARVRatioPoints int     `json:"arvRatioPoints"`
	ARVRatio       float64 `json:"arvRatio"`
	TotalCost      float64 `json:"totalCost"`
	ARV            float64 `json:"arv"`
}

// HoldTarget is the rent that would earn a perfect Hold score with every
// other input unchanged.
type HoldTarget struct {
	MinRent          float64 `json:"minRent"`
	RentForCashflow  float64 `json:"rentForCashflow"`
	RentForRentRatio float64 `json:"rentForRentRatio"`
	CurrentRent      float64 `json:"currentRent"`
	AlreadyPerfect   bool    `json:"alreadyPerfect"`
}

// FlipTarget holds the ARV and purchase price that would earn a perfect
// Flip score with every other input unchanged.
type FlipTarget struct {
	// MinARV is nil at zero cost, where no ARV reaches the top tier.
	MinARV         *float64 `json:"minArv"`
	MaxOffer       float64  `json:"maxOffer"`
	CurrentARV     float64  `json:"currentArv"`
	AlreadyPerfect bool     `json:"alreadyPerfect"`
}

// LegacyBreakdown is the older 4/4/2 point table. It is kept so historical
// analyses still reproduce; new scoring goes through Hold and Flip.
type LegacyBreakdown struct {
	Score            int     `json:"score"`
	RentRatioPoints  int     `json:"rentRatioPoints"`
	ARVRatioPoints   int     `json:"arvRatioPoints"`
	HomeEquityPoints int     `json:"homeEquityPoints"`
	RentRatio        float64 `json:"rentRatio"`
	ARVRatio         float64 `json:"arvRatio"`
	HomeEquity       float64 `json:"homeEquity"`
}

// cashflowPoints scales monthly cashflow per unit to 0..8.
func cashflowPoints(perUnit float64) int {
	switch {
	case perUnit >= 500:
		return 8
	case perUnit >= 400:
		return 7
	case perUnit >= 300:
		return 6
	case perUnit >= 250:
		return 5
	case perUnit >= 200:
		return 4
	case perUnit >= 150:
		return 3
	case perUnit >= 100:
		return 2
	case perUnit >= 50:
		return 1
	default:
		return 0
	}
}

// rentRatioPoints awards the rent-ratio part of the Hold score (the 1% rule).
func rentRatioPoints(ratio float64) int {
	r := roundRatio(ratio)
	switch {
	case r >= 0.010:
		return 2
	case r >= 0.008:
		return 1
	default:
		return 0
	}
}

// arvRatioPoints is the Flip step function. A zero ratio means the ARV is
// unknown and earns nothing.
func arvRatioPoints(ratio float64) int {
	r := roundRatio(ratio)
	switch {
	case r <= 0:
		return 0
	case r <= 0.75:
		return 10
	case r <= 0.80:
		return 7
	case r <= 0.85:
		return 4
	default:
		return 0
	}
}

func legacyRentRatioPoints(ratio float64) int {
	r := roundRatio(ratio)
	switch {
	case r >= 0.010:
		return 4
	case r >= 0.008:
		return 2
	default:
		return 0
	}
}

func legacyARVRatioPoints(ratio float64) int {
	r := roundRatio(ratio)
	switch {
	case r <= 0:
		return 0
	case r <= 0.70:
		return 4
	case r <= 0.80:
		return 2
	default:
		return 0
	}
}

func legacyHomeEquityPoints(equity float64) int {
	switch {
	case equity >= 30000:
		return 2
	case equity >= 15000:
		return 1
	default:
		return 0
	}
}

// Hold scores a property for buy-and-hold.
func Hold(calc *underwriting.Calculator, in underwriting.Inputs) HoldBreakdown {
	m := calc.Compute(in)
	cf := cashflowPoints(m.CashflowPerUnit)
	rr := rentRatioPoints(m.RentRatio)

	return HoldBreakdown{
		Score:           clampScore(cf + rr),
		CashflowPoints:  cf,
		RentRatioPoints: rr,
		MonthlyCashflow: m.MonthlyCashflow,
		CashflowPerUnit: m.CashflowPerUnit,
		RentRatio:       m.RentRatio,
		Units:           unitsOrOne(in.Units),
	}
}

// Flip scores a property for fix-and-flip.
func Flip(in underwriting.Inputs) FlipBreakdown {
	ratio := underwriting.ARVRatio(in.OfferPrice, in.RehabCosts, in.ARV)
	pts := arvRatioPoints(ratio)

	return FlipBreakdown{
		Score:          clampScore(pts),
		ARVRatioPoints: pts,
		ARVRatio:       ratio,
		TotalCost:      in.OfferPrice + in.RehabCosts,
		ARV:            in.ARV,
	}
}

// Legacy scores with the 4/4/2 table.
func Legacy(calc *underwriting.Calculator, in underwriting.Inputs) LegacyBreakdown {
	rentRatio := underwriting.RentRatio(in.PotentialRent, in.OfferPrice, in.RehabCosts)
	arvRatio := underwriting.ARVRatio(in.OfferPrice, in.RehabCosts, in.ARV)
	equity := calc.Financing(in.OfferPrice, in.RehabCosts, in.ARV).HomeEquity

	rr := legacyRentRatioPoints(rentRatio)
	ar := legacyARVRatioPoints(arvRatio)
	he := legacyHomeEquityPoints(equity)

	return LegacyBreakdown{
		Score:            clampScore(rr + ar + he),
		RentRatioPoints:  rr,
		ARVRatioPoints:   ar,
		HomeEquityPoints: he,
		RentRatio:        rentRatio,
		ARVRatio:         arvRatio,
		HomeEquity:       equity,
	}
}

// HoldTargetFor returns the minimum rent that reaches the top tier of both
// Hold sub-scores. The mortgage payment does not depend on rent, so each
// breakpoint inverts independently and the larger requirement wins.
func HoldTargetFor(calc *underwriting.Calculator, in underwriting.Inputs) HoldTarget {
	payment := calc.Financing(in.OfferPrice, in.RehabCosts, in.ARV).MonthlyPayment
	forCashflow := math.Ceil(payment + perfectCashflowPerUnit*float64(unitsOrOne(in.Units)))
	forRatio := math.Ceil(perfectRentRatio * (in.OfferPrice + in.RehabCosts))
	minRent := math.Max(forCashflow, forRatio)

	return HoldTarget{
		MinRent:          minRent,
		RentForCashflow:  forCashflow,
		RentForRentRatio: forRatio,
		CurrentRent:      in.PotentialRent,
		AlreadyPerfect:   Hold(calc, in).Score == MaxScore,
	}
}

// FlipTargetFor inverts the top Flip breakpoint in both directions: the
// smallest ARV that earns 10 at the current cost, and the largest offer that
// earns 10 at the current ARV. A zero ratio scores 0, so zero cost has no
// minimum ARV.
func FlipTargetFor(in underwriting.Inputs) FlipTarget {
	target := FlipTarget{
		MaxOffer:       math.Max(0, math.Floor(in.ARV*perfectARVRatio-in.RehabCosts)),
		CurrentARV:     in.ARV,
		AlreadyPerfect: Flip(in).Score == MaxScore,
	}
	if total := in.OfferPrice + in.RehabCosts; total > 0 {
		minARV := math.Ceil(total / perfectARVRatio)
		target.MinARV = &minARV
	}
	return target
}

func roundRatio(v float64) float64 {
	return math.Round(v*ratioPrecision) / ratioPrecision
}

func clampScore(value int) int {
	if value < 0 {
		return 0
	}
	if value > MaxScore {
		return MaxScore
	}
	return value
}

func unitsOrOne(units int) int {
	if units < 1 {
		return 1
	}
	return units
}
