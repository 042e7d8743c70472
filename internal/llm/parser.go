package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/verdictlabs/verdict/internal/model"
)

// decisionPayload is the wire shape we ask the model to produce.
type decisionPayload struct {
	Decision struct {
		Status     string  `json:"status"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"decision"`
	AlternativeReasoning string          `json:"alternative_reasoning"`
	Counterfactuals      json.RawMessage `json:"counterfactuals"`
	Fairness             struct {
		Assessment string `json:"assessment"`
		Concerns   string `json:"concerns"`
	} `json:"fairness"`
	KeyMetrics struct {
		RiskScore           float64  `json:"risk_score"`
		ApprovalProbability float64  `json:"approval_probability"`
		CriticalFactors     []string `json:"critical_factors"`
	} `json:"key_metrics"`
}

var fencedJSONPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```"),
}

// extractJSON pulls the first JSON object out of raw model output.
// Small models wrap JSON in code fences or prefix it with prose, so we try
// the direct form first and fall back to fenced and embedded objects.
func extractJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	for _, pattern := range fencedJSONPatterns {
		if match := pattern.FindStringSubmatch(trimmed); match != nil {
			candidate := strings.TrimSpace(match[1])
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	// Last resort: widest brace-delimited span
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no JSON object found in model output")
}

// parseDecision turns raw model output into a structured result.
func parseDecision(content string) (*model.AIResult, error) {
	object, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse decision JSON: %w", err)
	}

	status := strings.TrimSpace(payload.Decision.Status)
	if status == "" {
		return nil, fmt.Errorf("decision status missing from model output")
	}

	result := &model.AIResult{
		Decision: model.Decision{
			Status:     status,
			Confidence: clampUnit(payload.Decision.Confidence),
			Reasoning:  strings.TrimSpace(payload.Decision.Reasoning),
		},
		AlternativeReasoning: strings.TrimSpace(payload.AlternativeReasoning),
		Counterfactuals:      normalizeCounterfactuals(payload.Counterfactuals),
		Fairness: model.Fairness{
			Assessment: strings.TrimSpace(payload.Fairness.Assessment),
			Concerns:   strings.TrimSpace(payload.Fairness.Concerns),
		},
		KeyMetrics: model.KeyMetrics{
			RiskScore:           payload.KeyMetrics.RiskScore,
			ApprovalProbability: clampUnit(payload.KeyMetrics.ApprovalProbability),
			CriticalFactors:     payload.KeyMetrics.CriticalFactors,
		},
	}

	return result, nil
}

// maxCounterfactuals bounds the actionable steps shown to an applicant.
const maxCounterfactuals = 5

var counterfactualSplit = regexp.MustCompile(`[\n;]+`)

// normalizeCounterfactuals cleans whatever shape the model produced — a
// list, a single packed string, or mixed types — into at most five
// "Step N: ..." entries.
func normalizeCounterfactuals(raw json.RawMessage) []string {
	var candidates []string

	var asList []any
	var asString string
	switch {
	case len(raw) == 0:
		return nil
	case json.Unmarshal(raw, &asList) == nil:
		for _, item := range asList {
			if s, ok := item.(string); ok {
				candidates = append(candidates, strings.TrimSpace(s))
			} else {
				candidates = append(candidates, strings.TrimSpace(fmt.Sprint(item)))
			}
		}
	case json.Unmarshal(raw, &asString) == nil:
		for _, part := range counterfactualSplit.Split(asString, -1) {
			candidates = append(candidates, strings.TrimSpace(part))
		}
	default:
		return nil
	}

	cleaned := make([]string, 0, maxCounterfactuals)
	for _, text := range candidates {
		if text == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(text), "step ") {
			text = fmt.Sprintf("Step %d: %s", len(cleaned)+1, text)
		}
		cleaned = append(cleaned, text)
		if len(cleaned) >= maxCounterfactuals {
			break
		}
	}

	return cleaned
}

// overridePayload is the wire shape for override explanations.
type overridePayload struct {
	Summary           string   `json:"summary"`
	DetailedReasoning string   `json:"detailed_reasoning"`
	NextSteps         []string `json:"next_steps"`
	Conditions        []string `json:"conditions"`
	OverrideContext   string   `json:"override_context"`
}

// parseOverrideExplanation extracts a customer-facing override summary.
func parseOverrideExplanation(content string) (string, error) {
	object, err := extractJSON(content)
	if err != nil {
		return "", err
	}

	var payload overridePayload
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return "", fmt.Errorf("failed to parse override JSON: %w", err)
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		summary = strings.TrimSpace(payload.DetailedReasoning)
	}
	if summary == "" {
		return "", fmt.Errorf("override explanation missing from model output")
	}

	if detail := strings.TrimSpace(payload.DetailedReasoning); detail != "" && detail != summary {
		summary = summary + " " + detail
	}

	return summary, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
