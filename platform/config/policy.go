package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Policy holds the investor's underwriting and valuation policy. Values are
// business knobs, not infrastructure, and are parsed with struct tags so the
// defaults live next to the fields they govern.
type Policy struct {
	CashRemaining           float64       `env:"POLICY_CASH_REMAINING" envDefault:"20000"`
	MortgageAnnualRate      float64       `env:"POLICY_MORTGAGE_RATE" envDefault:"0.07"`
	MortgageTermYears       int           `env:"POLICY_MORTGAGE_TERM_YEARS" envDefault:"30"`
	MAOFactor               float64       `env:"POLICY_MAO_FACTOR" envDefault:"0.70"`
	CompRecency             time.Duration `env:"POLICY_COMP_RECENCY" envDefault:"8760h"`
	AdjustFlaggedARV        bool          `env:"POLICY_ADJUST_FLAGGED_ARV" envDefault:"true"`
	ReingestRevivesArchived bool          `env:"REINGEST_REVIVES_ARCHIVED" envDefault:"true"`
	MaterialPriceChangePct  float64       `env:"MATERIAL_PRICE_CHANGE_PCT" envDefault:"1.0"`
	StaleEvaluationAge      time.Duration `env:"STALE_EVALUATION_AGE" envDefault:"720h"`
	ProviderTimeout         time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"20s"`
	File                    string        `env:"VALUATION_POLICY_FILE"`

	Valuation ValuationPolicyFile
}

// ValuationPolicyFile is the optional YAML document with benchmark data and
// comp screening patterns.
type ValuationPolicyFile struct {
	PlaceholderPatterns []string      `yaml:"placeholderPatterns"`
	AreaAverages        []AreaAverage `yaml:"areaAverages"`
}

// AreaAverage is a static ARV benchmark for a ZIP code.
type AreaAverage struct {
	Zip string  `yaml:"zip"`
	ARV float64 `yaml:"arv"`
}

// LoadPolicy parses the policy from the environment and, when
// VALUATION_POLICY_FILE is set, merges the YAML document into it.
func LoadPolicy() (Policy, error) {
	var p Policy
	if err := env.Parse(&p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}

	if p.MortgageTermYears <= 0 {
		return Policy{}, fmt.Errorf("POLICY_MORTGAGE_TERM_YEARS must be positive")
	}
	if p.MAOFactor <= 0 || p.MAOFactor > 1 {
		return Policy{}, fmt.Errorf("POLICY_MAO_FACTOR must be in (0, 1]")
	}

	if p.File == "" {
		return p, nil
	}

	data, err := os.ReadFile(p.File)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	file, err := ParseValuationPolicy(data)
	if err != nil {
		return Policy{}, err
	}
	p.Valuation = file
	return p, nil
}

// ParseValuationPolicy decodes a YAML valuation policy document.
func ParseValuationPolicy(data []byte) (ValuationPolicyFile, error) {
	var file ValuationPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ValuationPolicyFile{}, fmt.Errorf("decode policy file: %w", err)
	}
	for _, area := range file.AreaAverages {
		if area.Zip == "" || area.ARV <= 0 {
			return ValuationPolicyFile{}, fmt.Errorf("policy file: area average needs zip and positive arv")
		}
	}
	return file, nil
}
