package summary

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/suncheck/suncheck/internal/models"
)

func sampleView() View {
	return View{
		Lat:      26.92,
		Lng:      70.90,
		Features: models.Features{SolarIrradiance: 6.5},
		Verdict: models.Verdict{
			Score:            87,
			Grade:            "A",
			SuitabilityClass: "Excellent",
		},
		Finance: models.Financial{
			AnnualSavings: 303_680,
			PaybackYears:  models.Years(3.29),
		},
	}
}

func TestGeminiClientUsesFirstWorkingModel(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if strings.Contains(r.URL.Path, "gemini-2.0-flash:") {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Strong site."}]}}]}`)
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.Client(), srv.URL, "test-key")
	text, provider, err := client.Summarize(context.Background(), sampleView())
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if text != "Strong site." {
		t.Fatalf("text = %q", text)
	}
	if provider != "gemini-2.0-flash-lite" {
		t.Fatalf("provider = %s, want the second model", provider)
	}
	if len(calls) != 2 {
		t.Fatalf("made %d calls, want 2", len(calls))
	}
}

func TestGeminiClientRequiresKey(t *testing.T) {
	client := NewGeminiClient(nil, "http://unused", "")
	if client.Configured() {
		t.Fatal("client without a key must not report configured")
	}
	if _, _, err := client.Summarize(context.Background(), sampleView()); err == nil {
		t.Fatal("expected an error without a key")
	}
}

func TestGeminiClientStopsOnExpiredContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.Client(), srv.URL, "test-key")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := client.Summarize(ctx, sampleView()); err == nil {
		t.Fatal("expected an error with a canceled context")
	}
}

func TestTemplateGradesPotential(t *testing.T) {
	v := sampleView()
	text := Template(v)
	if !strings.Contains(text, "excellent solar potential") {
		t.Fatalf("text = %q, want excellent potential", text)
	}
	if !strings.Contains(text, "score 87/100") {
		t.Fatalf("text = %q, want the score", text)
	}

	v.Verdict.Score = 40
	if text := Template(v); !strings.Contains(text, "below-average") {
		t.Fatalf("text = %q, want below-average", text)
	}
}

func TestTemplateLeadsWithViolation(t *testing.T) {
	v := sampleView()
	v.Verdict.Score = 22
	v.Verdict.ConstraintViolations = []string{"Solar irradiance insufficient", "Too cloudy"}

	text := Template(v)
	if !strings.Contains(text, "unsuitable") {
		t.Fatalf("text = %q, want unsuitable", text)
	}
	if !strings.Contains(text, "Solar irradiance insufficient") {
		t.Fatalf("text = %q, want the first violation", text)
	}
}

func TestTemplateHandlesInfinitePayback(t *testing.T) {
	v := sampleView()
	v.Finance.PaybackYears = models.Years(math.Inf(1))

	text := Template(v)
	if !strings.Contains(text, "beyond the system lifetime") {
		t.Fatalf("text = %q, want the no-payback phrase", text)
	}
}
