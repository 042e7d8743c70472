package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/verdictlabs/verdict/internal/model"
)

// formatFeatures renders a payload as "Key: value" lines. Plain text keeps
// the prompt short and is easier for small models than nested JSON.
func formatFeatures(features map[string]any) string {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		readable := titleWords(strings.ReplaceAll(key, "_", " "))

		value := features[key]
		var rendered string
		switch v := value.(type) {
		case nil:
			rendered = "N/A"
		case string:
			rendered = v
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}
			rendered = strings.Join(parts, ", ")
		case map[string]any:
			encoded, err := json.Marshal(v)
			if err != nil {
				rendered = fmt.Sprint(v)
			} else {
				rendered = string(encoded)
			}
		case float64:
			rendered = strings.TrimSuffix(fmt.Sprintf("%.2f", v), ".00")
		default:
			rendered = fmt.Sprint(v)
		}

		fmt.Fprintf(&b, "%s: %s\n", readable, rendered)
	}

	return strings.TrimRight(b.String(), "\n")
}

// titleWords uppercases the first letter of each space-separated word.
// Form field names are ASCII, so byte-level casing is safe here.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// formatPolicies renders the applicable policy block, or "" when none apply.
func formatPolicies(policies []model.Policy) string {
	if len(policies) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nAPPLICABLE POLICIES AND RULES:\n")
	for i, policy := range policies {
		fmt.Fprintf(&b, "%d. %s\n", i+1, policy.Text)
	}
	return b.String()
}

// formatHistory renders recent decisions for the same domain, or "" when
// there is no precedent yet.
func formatHistory(history []model.MemoryEntry) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nRECENT SIMILAR DECISIONS:\n")
	for i, entry := range history {
		reasoning := entry.Reasoning
		if len(reasoning) > 400 {
			reasoning = reasoning[:400]
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, entry.Label, reasoning)
	}
	return b.String()
}

// buildDecisionPrompt assembles the classification prompt from the
// application payload, the domain's policies, and recent decision context.
func buildDecisionPrompt(req Request) string {
	return fmt.Sprintf(`SYSTEM:
You are a deterministic decision engine.
You MUST output JSON only and strictly follow the schema.
Never refuse. Never explain internal policies directly.
If data is insufficient, reject conservatively.

TASK:
Evaluate a %s application.
Write a detailed, customer-friendly, multi-paragraph explanation in very simple English.
If REJECTED, you MUST output between 3 and 5 clear, simple, actionable steps in the "counterfactuals" list.
Each counterfactual item must:
- Be a single, specific sentence.
- Start with "Step N: " where N is 1, 2, 3, ...
- Focus only on things the applicant can realistically change (income, savings, debt, documents, credit behaviour, etc.).
- Avoid vague advice and technical jargon.
If APPROVED, you may leave "counterfactuals" empty or use it for maintenance tips.
Your reasoning text should be rich and specific (at least 4-6 sentences), but stay concise and focused on the applicant.

INPUT (TEXT FORMAT):
%s%s%s

OUTPUT (STRICT JSON ONLY):
{
  "decision": {
    "status": "APPROVED or REJECTED",
    "confidence": 0.0,
    "reasoning": "Audit-grade explanation"
  },
  "counterfactuals": ["Step 1: ...", "Step 2: ...", "Step 3: ..."],
  "fairness": {
    "assessment": "Fair or Potentially Unfair",
    "concerns": "One sentence summary"
  },
  "key_metrics": {
    "risk_score": 0-100,
    "approval_probability": 0.0-1.0,
    "critical_factors": ["factor1", "factor2"]
  }
}`,
		req.Domain,
		formatFeatures(req.Features),
		formatPolicies(req.Policies),
		formatHistory(req.History),
	)
}

// buildOverridePrompt assembles the prompt explaining a human override.
func buildOverridePrompt(req OverrideRequest) string {
	comment := req.ReviewComment
	if comment == "" {
		comment = "None provided"
	}

	applicant, err := json.MarshalIndent(req.Features, "", "  ")
	if err != nil {
		applicant = []byte(formatFeatures(req.Features))
	}

	return fmt.Sprintf(`SYSTEM:
You are an explainable AI system helping to explain why a human agent overrode your recommendation.
You MUST output JSON only.

CONTEXT:
- Application Type: %s
- Your AI Recommendation: %s
- Agent's Final Decision: %s
- Agent's Comment: %s

APPLICANT DATA:
%s

TASK:
Generate a customer-friendly explanation for why the agent overrode your recommendation.
Include:
1. Summary of the override
2. Reasoning for the agent's decision
3. Next steps for the customer
4. Conditions or requirements if applicable

OUTPUT (STRICT JSON ONLY):
{
  "summary": "Brief explanation of the override decision",
  "detailed_reasoning": "Comprehensive explanation",
  "next_steps": ["step1", "step2"],
  "conditions": ["condition1", "condition2"],
  "override_context": "Why the human decision differed from AI"
}`,
		req.Domain,
		req.AIStatus,
		req.HumanStatus,
		comment,
		string(applicant),
	)
}
