package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/suncheck/suncheck/internal/models"
)

// FallbackProvider is recorded as ai_provider when the collaborator is
// unavailable and the deterministic template is used instead.
const FallbackProvider = "fallback-template"

// View is the compact prompt view of one analysis handed to the summarizer.
type View struct {
	Lat      float64
	Lng      float64
	Features models.Features
	Verdict  models.Verdict
	Finance  models.Financial
}

// Summarizer produces the natural-language summary for an analysis. It may
// fail or run past its deadline; callers substitute Template then.
type Summarizer interface {
	Summarize(ctx context.Context, v View) (text string, provider string, err error)
}

// preferred Gemini models, newest first.
var geminiModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-flash",
}

// GeminiClient calls the Gemini generateContent endpoint, trying each model
// in preference order.
type GeminiClient struct {
	hc      *http.Client
	baseURL string
	apiKey  string
}

// NewGeminiClient builds a client; baseURL is the API root without a
// trailing slash (e.g. https://generativelanguage.googleapis.com/v1beta).
func NewGeminiClient(hc *http.Client, baseURL, apiKey string) *GeminiClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &GeminiClient{hc: hc, baseURL: baseURL, apiKey: apiKey}
}

// Configured reports whether an API key is present.
func (c *GeminiClient) Configured() bool { return c.apiKey != "" }

type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Summarize renders the prompt and tries each preferred model in order.
func (c *GeminiClient) Summarize(ctx context.Context, v View) (string, string, error) {
	if c.apiKey == "" {
		return "", "", fmt.Errorf("summarizer not configured")
	}

	prompt := buildPrompt(v)
	var lastErr error
	for _, model := range geminiModels {
		text, err := c.generate(ctx, model, prompt)
		if err != nil {
			lastErr = err
			log.Printf("summarizer model %s failed: %v", model, err)
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			continue
		}
		return text, model, nil
	}
	return "", "", lastErr
}

func (c *GeminiClient) generate(ctx context.Context, model, prompt string) (string, error) {
	var body geminiRequest
	body.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	body.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: prompt}}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer call failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("summarizer non-2xx: %s", resp.Status)
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode summarizer resp: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("summarizer returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func buildPrompt(v View) string {
	return fmt.Sprintf(
		`You are an expert in renewable energy site evaluation.

Analyze this location and provide a concise (3-4 sentence), professional,
actionable recommendation for a solar installation.

Location: %.4f, %.4f
Placement score: %d/100 (grade %s, %s)
Solar irradiance: %.2f kWh/m2/day
Payback period: %s
Annual savings: %.0f

Address the key factor driving the score, practical advice for maximizing
yield, and the investment outlook. Keep it concise and data-driven.`,
		v.Lat, v.Lng,
		v.Verdict.Score, v.Verdict.Grade, v.Verdict.SuitabilityClass,
		v.Features.SolarIrradiance,
		paybackPhrase(v.Finance.PaybackYears),
		v.Finance.AnnualSavings,
	)
}

// Template is the deterministic fallback summary derived from the grade and
// the top constraint violation. It never fails, so the pipeline never fails
// because of the summarizer.
func Template(v View) string {
	var potential, outlook string
	switch {
	case v.Verdict.Score >= 80:
		potential = "excellent"
		outlook = "The investment outlook is very strong."
	case v.Verdict.Score >= 65:
		potential = "good"
		outlook = "The investment outlook is favorable."
	case v.Verdict.Score >= 50:
		potential = "moderate"
		outlook = "The investment outlook is acceptable."
	default:
		potential = "below-average"
		outlook = "Consider alternative sites for better returns."
	}

	if len(v.Verdict.ConstraintViolations) > 0 {
		return fmt.Sprintf(
			"This location is unsuitable for a solar installation (score %d/100): %s. %s",
			v.Verdict.Score, v.Verdict.ConstraintViolations[0],
			"Consider alternative sites for better returns.",
		)
	}

	return fmt.Sprintf(
		"This location has %s solar potential (score %d/100) with irradiance of %.1f kWh/m2/day. "+
			"Estimated annual savings of %.0f give a payback period of %s. %s",
		potential, v.Verdict.Score, v.Features.SolarIrradiance,
		v.Finance.AnnualSavings, paybackPhrase(v.Finance.PaybackYears), outlook,
	)
}

func paybackPhrase(y models.Years) string {
	if !y.IsFinite() {
		return "beyond the system lifetime"
	}
	return fmt.Sprintf("approximately %.1f years", float64(y))
}
