package underwriting

import (
	"math"
	"testing"
)

const tolerance = 1e-6

func approx(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestRentRatioZeroCases(t *testing.T) {
	tests := []struct {
		name               string
		rent, offer, rehab float64
		want               float64
	}{
		{name: "zero rent", rent: 0, offer: 150000, rehab: 10000, want: 0},
		{name: "zero denominator", rent: 1500, offer: 0, rehab: 0, want: 0},
		{name: "all zero", want: 0},
		{name: "normal", rent: 2000, offer: 180000, rehab: 20000, want: 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RentRatio(tt.rent, tt.offer, tt.rehab)
			if math.IsNaN(got) || !approx(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestARVRatioZeroARV(t *testing.T) {
	if got := ARVRatio(100000, 5000, 0); got != 0 {
		t.Fatalf("expected 0 for zero arv, got %v", got)
	}
	if got := ARVRatio(180000, 20000, 250000); !approx(got, 0.8) {
		t.Fatalf("expected 0.8, got %v", got)
	}
}

func TestDiscount(t *testing.T) {
	if got := Discount(0, 100); got != 0 {
		t.Fatalf("expected 0 for zero listing price, got %v", got)
	}
	if got := Discount(200000, 180000); !approx(got, 0.1) {
		t.Fatalf("expected 0.1, got %v", got)
	}
}

func TestFinancing(t *testing.T) {
	calc := NewCalculator(20000, nil)
	f := calc.Financing(180000, 20000, 250000)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"downPayment", f.DownPayment, 50000},
		{"loanAmount", f.LoanAmount, 150000},
		{"newLoan", f.NewLoan, 180000},
		{"cashToPullOut", f.CashToPullOut, 30000},
		{"homeEquity", f.HomeEquity, 70000},
		{"newLoanPercent", f.NewLoanPercent, 0.72},
		{"monthlyPayment", f.MonthlyPayment, 0},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestFinancingZeroARV(t *testing.T) {
	f := NewCalculator(20000, nil).Financing(100000, 0, 0)
	if f.NewLoanPercent != 0 {
		t.Fatalf("expected newLoanPercent 0 for zero arv, got %v", f.NewLoanPercent)
	}
}

func TestFixedRateMortgage(t *testing.T) {
	pay := FixedRateMortgage(0.06, 30)
	// Standard 30y @ 6% on 100k is 599.55.
	if got := pay(100000); math.Abs(got-599.55) > 0.01 {
		t.Fatalf("expected 599.55, got %.4f", got)
	}
	if got := FixedRateMortgage(0, 10)(120000); !approx(got, 1000) {
		t.Fatalf("expected 1000 for zero-rate loan, got %v", got)
	}
	if got := pay(-5); got != 0 {
		t.Fatalf("expected 0 for negative principal, got %v", got)
	}
}

func TestComputeCashflowPerUnit(t *testing.T) {
	calc := NewCalculator(20000, func(p float64) float64 { return p / 100 })
	m := calc.Compute(Inputs{OfferPrice: 180000, RehabCosts: 20000, PotentialRent: 2400, ARV: 250000, Units: 2})

	// newLoan 180000 -> payment 1800 -> cashflow 600 -> 300 per unit
	if !approx(m.MonthlyCashflow, 600) {
		t.Fatalf("expected cashflow 600, got %v", m.MonthlyCashflow)
	}
	if !approx(m.CashflowPerUnit, 300) {
		t.Fatalf("expected 300 per unit, got %v", m.CashflowPerUnit)
	}
}

func TestComputeZeroUnitsTreatedAsOne(t *testing.T) {
	m := NewCalculator(0, nil).Compute(Inputs{PotentialRent: 1000})
	if !approx(m.CashflowPerUnit, 1000) {
		t.Fatalf("expected 1000, got %v", m.CashflowPerUnit)
	}
}

func TestMAOAndSpread(t *testing.T) {
	if got := MAO(250000, 20000, 0.7); !approx(got, 155000) {
		t.Fatalf("expected MAO 155000, got %v", got)
	}
	if got := MAO(10000, 50000, 0.7); got != 0 {
		t.Fatalf("expected MAO floored at 0, got %v", got)
	}
	if got := SpreadPercent(250000, 180000, 20000); !approx(got, 20) {
		t.Fatalf("expected spread 20, got %v", got)
	}
	if got := SpreadPercent(0, 180000, 20000); got != 0 {
		t.Fatalf("expected spread 0 for zero arv, got %v", got)
	}
}
