package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/verdictlabs/verdict/internal/model"
)

// MockClassifier is a deterministic, rule-based implementation of the
// Classifier interface for tests and offline demos. Its rules mirror the
// heuristics a lender or recruiter would sketch on a whiteboard.
type MockClassifier struct {
	// Err, when set, is returned from every call.
	Err error
	// Confidence overrides the per-rule confidence when non-zero.
	Confidence float64

	calls []MockCall
	mu    sync.Mutex
}

// MockCall records the arguments of one Classify invocation.
type MockCall struct {
	Features map[string]any
	Domain   model.Domain
	Policies int
	History  int
}

// NewMockClassifier creates a rule-based mock classifier.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// Classify applies fixed per-domain rules to the input features.
func (m *MockClassifier) Classify(_ context.Context, domain model.Domain, features map[string]any, policies []model.Policy, history []model.MemoryEntry) (*model.AIResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Domain:   domain,
		Features: features,
		Policies: len(policies),
		History:  len(history),
	})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	var label, reasoning string
	var confidence float64

	switch domain {
	case model.DomainLoan:
		score := num(features, "credit_score")
		debt := num(features, "existing_debt")
		income := num(features, "monthly_income")
		if score > 650 && debt < 3*income {
			label, confidence = "APPROVED", 0.91
			reasoning = "Credit score above 650 with debt under three times monthly income."
		} else {
			label, confidence = "REJECTED", 0.88
			reasoning = "Credit score or debt-to-income ratio outside acceptable range."
		}
	case model.DomainJob:
		if num(features, "skill_score") > 65 {
			label, confidence = "HIRED", 0.90
			reasoning = "Skill score above hiring threshold."
		} else {
			label, confidence = "REJECTED", 0.86
			reasoning = "Skill score below hiring threshold."
		}
	case model.DomainInsurance:
		if num(features, "claim_amount") < 10000 {
			label, confidence = "APPROVED", 0.89
			reasoning = "Claim amount within automatic approval limit."
		} else {
			label, confidence = "REJECTED", 0.72
			reasoning = "Claim amount exceeds automatic approval limit."
		}
	case model.DomainCredit:
		if num(features, "credit_score") > 700 && num(features, "credit_utilization") < 0.5 {
			label, confidence = "low_risk", 0.93
			reasoning = "Strong credit score with moderate utilization."
		} else {
			label, confidence = "high_risk", 0.81
			reasoning = "Credit score or utilization indicates elevated risk."
		}
	default:
		return nil, fmt.Errorf("no rules for domain %q", domain)
	}

	if m.Confidence > 0 {
		confidence = m.Confidence
	}

	return &model.AIResult{
		Decision: model.Decision{
			Status:     label,
			Reasoning:  reasoning,
			Confidence: confidence,
		},
		Counterfactuals: []string{"Step 1: No single change would alter this rule-based outcome."},
		Fairness: model.Fairness{
			Assessment: "Rule-based outcome applied uniformly across applicants.",
		},
		KeyMetrics: model.KeyMetrics{
			CriticalFactors: criticalFactors(domain),
			RiskScore:       1 - confidence,
		},
	}, nil
}

// ExplainOverride produces a canned narrative referencing both verdicts.
func (m *MockClassifier) ExplainOverride(_ context.Context, _ model.Domain, _ map[string]any, aiStatus, humanStatus, comment string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	text := fmt.Sprintf("Reviewer changed the outcome from %s to %s.", aiStatus, humanStatus)
	if comment != "" {
		text += " Reviewer comment: " + comment
	}
	return text, nil
}

// Calls returns a copy of the recorded Classify invocations.
func (m *MockClassifier) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func criticalFactors(domain model.Domain) []string {
	switch domain {
	case model.DomainLoan:
		return []string{"credit_score", "existing_debt", "monthly_income"}
	case model.DomainJob:
		return []string{"skill_score"}
	case model.DomainInsurance:
		return []string{"claim_amount"}
	case model.DomainCredit:
		return []string{"credit_score", "credit_utilization"}
	default:
		return nil
	}
}

func num(features map[string]any, key string) float64 {
	switch v := features[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
