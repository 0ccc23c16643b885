package validator

import (
	"errors"
	"testing"

	"dealflow_backend/platform/apperr"
)

type sample struct {
	Address string   `json:"address" validate:"required,street_address"`
	Price   float64  `json:"listingPrice" validate:"gte=0"`
	Tags    []string `json:"tags" validate:"omitempty,dive,tag"`
}

func TestCheckReportsJSONFieldNames(t *testing.T) {
	val := New()
	err := val.Check(sample{Address: "Main Street", Price: -1, Tags: []string{"Hot"}})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}

	details, ok := appErr.Details.(map[string][]apperr.FieldError)
	if !ok {
		t.Fatalf("expected field details, got %T", appErr.Details)
	}
	got := map[string]bool{}
	for _, fe := range details["fields"] {
		got[fe.Field] = true
	}
	for _, field := range []string{"address", "listingPrice", "tags[0]"} {
		if !got[field] {
			t.Fatalf("expected error for %s, got %+v", field, details["fields"])
		}
	}
}

func TestCheckPasses(t *testing.T) {
	val := New()
	if err := val.Check(sample{Address: "12 Oak Ave", Price: 100000, Tags: []string{"strategy:hold"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
