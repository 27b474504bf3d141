package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestYearsMarshalsInfAsNull(t *testing.T) {
	b, err := json.Marshal(Years(math.Inf(1)))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != "null" {
		t.Fatalf("marshaled %s, want null", b)
	}

	b, err = json.Marshal(Years(3.29))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(b) != "3.29" {
		t.Fatalf("marshaled %s, want 3.29", b)
	}
}

func TestYearsUnmarshalsNullAsInf(t *testing.T) {
	var y Years
	if err := json.Unmarshal([]byte("null"), &y); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if y.IsFinite() {
		t.Fatalf("got %f, want +Inf", float64(y))
	}

	if err := json.Unmarshal([]byte("4.5"), &y); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if float64(y) != 4.5 {
		t.Fatalf("got %f, want 4.5", float64(y))
	}
}

func TestFinancialRoundTripsInfinitePayback(t *testing.T) {
	fin := Financial{
		InstallationCost: 250_000,
		PaybackYears:     Years(math.Inf(1)),
		LifetimeProfit:   -250_000,
	}
	b, err := json.Marshal(fin)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Financial
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.PaybackYears.IsFinite() {
		t.Fatalf("payback round-tripped to %f, want +Inf", float64(decoded.PaybackYears))
	}
}
