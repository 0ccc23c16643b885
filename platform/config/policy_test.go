package config

import (
	"testing"
	"time"
)

func TestLoadPolicyDefaults(t *testing.T) {
	p, err := LoadPolicy()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CashRemaining != 20000 {
		t.Fatalf("expected cash remaining 20000, got %v", p.CashRemaining)
	}
	if p.CompRecency != 8760*time.Hour {
		t.Fatalf("expected 12 month comp recency, got %v", p.CompRecency)
	}
	if !p.ReingestRevivesArchived {
		t.Fatal("expected re-ingestion to revive archived leads by default")
	}
}

func TestLoadPolicyRejectsBadMAOFactor(t *testing.T) {
	t.Setenv("POLICY_MAO_FACTOR", "1.5")
	if _, err := LoadPolicy(); err == nil {
		t.Fatal("expected error for MAO factor above 1")
	}
}

func TestParseValuationPolicy(t *testing.T) {
	doc := []byte(`
placeholderPatterns:
  - "123 main"
  - "sample"
areaAverages:
  - zip: "78701"
    arv: 450000
`)
	file, err := ParseValuationPolicy(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(file.PlaceholderPatterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(file.PlaceholderPatterns))
	}
	if file.AreaAverages[0].ARV != 450000 {
		t.Fatalf("expected arv 450000, got %v", file.AreaAverages[0].ARV)
	}
}

func TestParseValuationPolicyRejectsIncompleteArea(t *testing.T) {
	doc := []byte("areaAverages:\n  - zip: \"\"\n    arv: 100\n")
	if _, err := ParseValuationPolicy(doc); err == nil {
		t.Fatal("expected error for area average without zip")
	}
}
