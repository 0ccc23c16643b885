package valuation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	acceptableDeviationPct = 25.0
	cautionDeviationPct    = 40.0

	// adjustmentCeiling caps a flagged ARV at the top of the acceptable band.
	adjustmentCeiling = 1 + acceptableDeviationPct/100

	metersPerMile = 1609.344

	compCountTarget    = 5
	compCountPoints    = 8
	compRecencyPoints  = 30.0
	goodCompQuality    = 70
	cautionCompQuality = 40
)

// DefaultPlaceholderPatterns are address fragments that only show up in
// test fixtures or scraped placeholder rows.
var DefaultPlaceholderPatterns = []string{
	"123 main", "sample", "test", "example", "placeholder", "n/a", "tbd", "fake", "lorem",
}

// zipRegex captures a trailing US ZIP (optionally ZIP+4).
var zipRegex = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\s*$`)

// Severity is the deviation bucket of an ARV against its benchmark.
type Severity string

const (
	SeverityAcceptable Severity = "acceptable"
	SeverityCaution    Severity = "caution"
	SeverityFlagged    Severity = "flagged"
)

// Tone maps a severity to its display tone.
func (s Severity) Tone() string {
	switch s {
	case SeverityAcceptable:
		return "success"
	case SeverityCaution:
		return "warning"
	case SeverityFlagged:
		return "danger"
	default:
		return "neutral"
	}
}

// CompSeverity buckets the comp quality score.
type CompSeverity string

const (
	CompGood    CompSeverity = "good"
	CompCaution CompSeverity = "caution"
	CompPoor    CompSeverity = "poor"
)

// Benchmarks are the reference values an ARV is checked against.
type Benchmarks struct {
	VerifiedMarket *float64 `json:"verifiedMarket,omitempty"`
	AreaAverage    *float64 `json:"areaAverage,omitempty"`
}

// Primary returns the benchmark deviation is measured against: the verified
// market estimate when there is one, else the area average.
func (b Benchmarks) Primary() (*float64, string) {
	if b.VerifiedMarket != nil && *b.VerifiedMarket > 0 {
		return b.VerifiedMarket, "verified_market"
	}
	if b.AreaAverage != nil && *b.AreaAverage > 0 {
		return b.AreaAverage, "area_average"
	}
	return nil, ""
}

// ComparableSale is one sale supplied by a comp provider.
type ComparableSale struct {
	Address       string    `json:"address"`
	SalePrice     float64   `json:"salePrice"`
	PricePerSqft  *float64  `json:"pricePerSqft,omitempty"`
	SaleDate      time.Time `json:"saleDate"`
	DistanceMiles *float64  `json:"distanceMiles,omitempty"`
	Source        string    `json:"source"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Suspicious    bool      `json:"suspicious"`
	Stale         bool      `json:"stale"`
}

// Subject is the property being valued.
type Subject struct {
	Address   string
	Latitude  *float64
	Longitude *float64
}

// ArvValidation is attached to the ARV estimate it was computed for.
type ArvValidation struct {
	Benchmarks             Benchmarks       `json:"benchmarks"`
	PrimaryBenchmark       *float64         `json:"primaryBenchmark,omitempty"`
	PrimaryBenchmarkSource string           `json:"primaryBenchmarkSource,omitempty"`
	DeviationPercent       *float64         `json:"deviationPercent"`
	Severity               *Severity        `json:"severity,omitempty"`
	Tone                   string           `json:"tone"`
	Flags                  []string         `json:"flags"`
	CompQualityScore       int              `json:"compQualityScore"`
	CompQualitySeverity    CompSeverity     `json:"compQualitySeverity"`
	Comparables            []ComparableSale `json:"comparables"`
	OriginalARV            float64          `json:"originalArv"`
	AdjustedARV            *float64         `json:"adjustedArv,omitempty"`
}

// FinalARV is the value an estimate should carry after validation.
func (r ArvValidation) FinalARV() float64 {
	if r.AdjustedARV != nil {
		return *r.AdjustedARV
	}
	return r.OriginalARV
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	PlaceholderPatterns []string
	CompRecency         time.Duration
	AdjustFlagged       bool
	AreaAverages        map[string]float64
	Now                 func() time.Time
}

// Validator cross-checks ARV estimates.
type Validator struct {
	patterns      []*regexp.Regexp
	recency       time.Duration
	adjustFlagged bool
	areas         map[string]float64
	now           func() time.Time
}

// NewValidator compiles the placeholder patterns. Empty patterns fall back
// to DefaultPlaceholderPatterns; a zero recency means 12 months.
func NewValidator(cfg ValidatorConfig) *Validator {
	patterns := cfg.PlaceholderPatterns
	if len(patterns) == 0 {
		patterns = DefaultPlaceholderPatterns
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		compiled = append(compiled, regexp.MustCompile(`(?i)(^|[^a-z0-9])`+regexp.QuoteMeta(p)+`($|[^a-z0-9])`))
	}

	recency := cfg.CompRecency
	if recency <= 0 {
		recency = 365 * 24 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	areas := make(map[string]float64, len(cfg.AreaAverages))
	for zip, v := range cfg.AreaAverages {
		areas[zip] = v
	}

	return &Validator{
		patterns:      compiled,
		recency:       recency,
		adjustFlagged: cfg.AdjustFlagged,
		areas:         areas,
		now:           now,
	}
}

// Deviation is (arv - benchmark) / benchmark * 100, or nil without a usable benchmark.
func Deviation(arv float64, benchmark *float64) *float64 {
	if benchmark == nil || *benchmark <= 0 {
		return nil
	}
	d := (arv - *benchmark) / *benchmark * 100
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return nil
	}
	return &d
}

// SeverityOf buckets a deviation regardless of its sign. The magnitude is
// rounded to hundredths first so 25.004 reads as 25.
func SeverityOf(deviation float64) Severity {
	mag := math.Round(math.Abs(deviation)*100) / 100
	switch {
	case mag <= acceptableDeviationPct:
		return SeverityAcceptable
	case mag <= cautionDeviationPct:
		return SeverityCaution
	default:
		return SeverityFlagged
	}
}

// AreaAverage looks up the static benchmark for the ZIP at the end of address.
func (v *Validator) AreaAverage(address string) *float64 {
	m := zipRegex.FindStringSubmatch(strings.TrimSpace(address))
	if m == nil {
		return nil
	}
	if avg, ok := v.areas[m[1]]; ok && avg > 0 {
		return &avg
	}
	return nil
}

// IsPlaceholderAddress reports whether address looks like filler data.
func (v *Validator) IsPlaceholderAddress(address string) bool {
	if strings.TrimSpace(address) == "" {
		return true
	}
	for _, re := range v.patterns {
		if re.MatchString(address) {
			return true
		}
	}
	return false
}

// ScreenComps returns a copy of comps with the suspicious and stale flags set
// and missing distances filled in from coordinates. Nothing is dropped.
func (v *Validator) ScreenComps(subject Subject, comps []ComparableSale) []ComparableSale {
	cutoff := v.now().Add(-v.recency)
	out := make([]ComparableSale, len(comps))
	for i, c := range comps {
		c.Suspicious = v.IsPlaceholderAddress(c.Address)
		c.Stale = c.SaleDate.IsZero() || c.SaleDate.Before(cutoff)
		if c.DistanceMiles == nil {
			c.DistanceMiles = distanceMiles(subject, c)
		}
		out[i] = c
	}
	return out
}

// CompQuality scores screened comps 0-100 from count, recency and distance.
// Suspicious comps do not contribute; stale ones count with no recency credit.
func CompQuality(comps []ComparableSale) (int, CompSeverity) {
	usable := make([]ComparableSale, 0, len(comps))
	for _, c := range comps {
		if !c.Suspicious {
			usable = append(usable, c)
		}
	}
	n := len(usable)
	if n == 0 {
		return 0, CompPoor
	}

	count := float64(min(n, compCountTarget) * compCountPoints)

	fresh := 0
	distance := 0.0
	for _, c := range usable {
		if !c.Stale {
			fresh++
		}
		distance += distancePoints(c.DistanceMiles)
	}
	recency := float64(fresh) / float64(n) * compRecencyPoints
	distance /= float64(n)

	score := int(math.Round(count + recency + distance))
	score = max(0, min(100, score))
	return score, compSeverityOf(score)
}

func compSeverityOf(score int) CompSeverity {
	switch {
	case score >= goodCompQuality:
		return CompGood
	case score >= cautionCompQuality:
		return CompCaution
	default:
		return CompPoor
	}
}

func distancePoints(miles *float64) float64 {
	if miles == nil {
		return 0
	}
	switch d := *miles; {
	case d <= 0.5:
		return 30
	case d <= 1:
		return 20
	case d <= 2:
		return 10
	default:
		return 0
	}
}

// Validate checks arv against the benchmarks and comps. The original value
// is always kept in OriginalARV; AdjustedARV is set only when a flagged
// overestimate is pulled down to the acceptable ceiling.
func (v *Validator) Validate(arv float64, subject Subject, bench Benchmarks, comps []ComparableSale) ArvValidation {
	if bench.AreaAverage == nil {
		bench.AreaAverage = v.AreaAverage(subject.Address)
	}

	result := ArvValidation{
		Benchmarks:  bench,
		OriginalARV: arv,
		Flags:       []string{},
		Tone:        "neutral",
	}

	primary, source := bench.Primary()
	result.PrimaryBenchmark = primary
	result.PrimaryBenchmarkSource = source
	result.DeviationPercent = Deviation(arv, primary)

	if result.DeviationPercent == nil {
		result.Flags = append(result.Flags, "no benchmark available")
	} else {
		dev := *result.DeviationPercent
		sev := SeverityOf(dev)
		result.Severity = &sev
		result.Tone = sev.Tone()
		if sev != SeverityAcceptable {
			result.Flags = append(result.Flags, fmt.Sprintf("ARV deviates %+.1f%% from %s benchmark", dev, strings.ReplaceAll(source, "_", " ")))
		}
		if sev == SeverityFlagged && dev > 0 && v.adjustFlagged {
			adjusted := math.Round(*primary * adjustmentCeiling)
			result.AdjustedARV = &adjusted
			result.Flags = append(result.Flags, fmt.Sprintf("ARV adjusted down from %.0f to %.0f", arv, adjusted))
		}
	}

	if source == "verified_market" {
		if secondary := Deviation(arv, bench.AreaAverage); secondary != nil && SeverityOf(*secondary) == SeverityFlagged {
			result.Flags = append(result.Flags, fmt.Sprintf("ARV deviates %+.1f%% from area average", *secondary))
		}
	}

	screened := v.ScreenComps(subject, comps)
	result.Comparables = screened
	result.CompQualityScore, result.CompQualitySeverity = CompQuality(screened)

	suspicious, stale := 0, 0
	for _, c := range screened {
		if c.Suspicious {
			suspicious++
		}
		if c.Stale {
			stale++
		}
	}
	if suspicious > 0 {
		result.Flags = append(result.Flags, fmt.Sprintf("%d comparable sale(s) have placeholder-looking addresses", suspicious))
	}
	if stale > 0 {
		result.Flags = append(result.Flags, fmt.Sprintf("%d comparable sale(s) are older than the recency cutoff", stale))
	}
	if len(screened) == suspicious {
		result.Flags = append(result.Flags, "no usable comparable sales")
	}

	return result
}

func distanceMiles(subject Subject, c ComparableSale) *float64 {
	if subject.Latitude == nil || subject.Longitude == nil || c.Latitude == nil || c.Longitude == nil {
		return nil
	}
	meters := geo.DistanceHaversine(
		orb.Point{*subject.Longitude, *subject.Latitude},
		orb.Point{*c.Longitude, *c.Latitude},
	)
	miles := math.Round(meters/metersPerMile*100) / 100
	return &miles
}
