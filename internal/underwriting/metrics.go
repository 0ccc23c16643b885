// Package underwriting converts raw property numbers into the ratios and
// financing figures the scoring and queue layers work with. Every function
// is pure and total over non-negative finite inputs: a zero denominator
// yields 0, never NaN or a panic.
package underwriting

import "math"

// DownPaymentRate is the share of purchase plus rehab funded with cash.
const DownPaymentRate = 0.25

// PaymentFunc returns the monthly payment for a loan principal. The rate and
// term live inside the function so callers never guess an amortization policy.
type PaymentFunc func(principal float64) float64

// Inputs are the monetary fields of a property or lead being evaluated.
type Inputs struct {
	ListingPrice  float64
	OfferPrice    float64
	RehabCosts    float64
	PotentialRent float64
	ARV           float64
	Units         int
}

// Financing is the refinance picture after purchase and rehab.
type Financing struct {
	DownPayment    float64 `json:"downPayment"`
	LoanAmount     float64 `json:"loanAmount"`
	CashRemaining  float64 `json:"cashRemaining"`
	NewLoan        float64 `json:"newLoan"`
	CashToPullOut  float64 `json:"cashToPullOut"`
	HomeEquity     float64 `json:"homeEquity"`
	NewLoanPercent float64 `json:"newLoanPercent"`
	MonthlyPayment float64 `json:"monthlyPayment"`
}

// Metrics is the full derived view of one set of inputs.
type Metrics struct {
	TotalCost       float64   `json:"totalCost"`
	RentRatio       float64   `json:"rentRatio"`
	ARVRatio        float64   `json:"arvRatio"`
	Discount        float64   `json:"discount"`
	Financing       Financing `json:"financing"`
	MonthlyCashflow float64   `json:"monthlyCashflow"`
	CashflowPerUnit float64   `json:"cashflowPerUnit"`
}

// Calculator holds the policy values the formulas need.
type Calculator struct {
	cashRemaining float64
	payment       PaymentFunc
}

// NewCalculator returns a Calculator. A nil payment function means every
// loan is treated as interest-free with no term, i.e. a zero payment.
func NewCalculator(cashRemaining float64, payment PaymentFunc) *Calculator {
	if payment == nil {
		payment = func(float64) float64 { return 0 }
	}
	return &Calculator{cashRemaining: cashRemaining, payment: payment}
}

// RentRatio is potentialRent / (offerPrice + rehabCosts).
func RentRatio(potentialRent, offerPrice, rehabCosts float64) float64 {
	return safeDiv(potentialRent, offerPrice+rehabCosts)
}

// ARVRatio is (offerPrice + rehabCosts) / arv.
func ARVRatio(offerPrice, rehabCosts, arv float64) float64 {
	return safeDiv(offerPrice+rehabCosts, arv)
}

// Discount is (listingPrice - offerPrice) / listingPrice.
func Discount(listingPrice, offerPrice float64) float64 {
	return safeDiv(listingPrice-offerPrice, listingPrice)
}

// Financing computes the refinance figures for offer + rehab against arv.
func (c *Calculator) Financing(offerPrice, rehabCosts, arv float64) Financing {
	total := offerPrice + rehabCosts
	down := total * DownPaymentRate
	loan := total - down
	newLoan := loan + (down - c.cashRemaining)

	return Financing{
		DownPayment:    finite(down),
		LoanAmount:     finite(loan),
		CashRemaining:  c.cashRemaining,
		NewLoan:        finite(newLoan),
		CashToPullOut:  finite(down - c.cashRemaining),
		HomeEquity:     finite(arv - newLoan),
		NewLoanPercent: safeDiv(newLoan, arv),
		MonthlyPayment: c.MonthlyPayment(newLoan),
	}
}

// MonthlyPayment applies the configured payment function. Non-positive
// principals owe nothing.
func (c *Calculator) MonthlyPayment(principal float64) float64 {
	if principal <= 0 {
		return 0
	}
	return finite(c.payment(principal))
}

// MonthlyCashflow is potentialRent minus the payment on the refinanced loan.
func (c *Calculator) MonthlyCashflow(in Inputs) float64 {
	f := c.Financing(in.OfferPrice, in.RehabCosts, in.ARV)
	return finite(in.PotentialRent - f.MonthlyPayment)
}

// Compute derives every metric for in.
func (c *Calculator) Compute(in Inputs) Metrics {
	f := c.Financing(in.OfferPrice, in.RehabCosts, in.ARV)
	cashflow := finite(in.PotentialRent - f.MonthlyPayment)

	return Metrics{
		TotalCost:       finite(in.OfferPrice + in.RehabCosts),
		RentRatio:       RentRatio(in.PotentialRent, in.OfferPrice, in.RehabCosts),
		ARVRatio:        ARVRatio(in.OfferPrice, in.RehabCosts, in.ARV),
		Discount:        Discount(in.ListingPrice, in.OfferPrice),
		Financing:       f,
		MonthlyCashflow: cashflow,
		CashflowPerUnit: finite(cashflow / float64(unitsOrOne(in.Units))),
	}
}

// MAO is the maximum allowable offer: arv * factor - rehab, floored at 0.
func MAO(arv, rehabCosts, factor float64) float64 {
	return math.Max(0, finite(arv*factor-rehabCosts))
}

// SpreadPercent is the projected margin of a purchase at listing price:
// (arv - listingPrice - rehab) / arv * 100.
func SpreadPercent(arv, listingPrice, rehabCosts float64) float64 {
	return safeDiv(arv-listingPrice-rehabCosts, arv) * 100
}

// FixedRateMortgage returns a standard amortizing payment function.
func FixedRateMortgage(annualRate float64, termYears int) PaymentFunc {
	n := float64(termYears * 12)
	r := annualRate / 12
	return func(principal float64) float64 {
		if principal <= 0 || n <= 0 {
			return 0
		}
		if r == 0 {
			return principal / n
		}
		return principal * r / (1 - math.Pow(1+r, -n))
	}
}

func unitsOrOne(units int) int {
	if units < 1 {
		return 1
	}
	return units
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
