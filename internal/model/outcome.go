package model

import "strings"

// Outcome buckets a model_output label into the three states the dashboard
// and store filters care about.
type Outcome int

// Outcome values.
const (
	OutcomePending Outcome = iota
	OutcomePositive
	OutcomeNegative
)

// positiveLabels is the fixed vocabulary of approved-like labels. The
// classifier's wording varies by domain ("hired" for jobs, "low risk" for
// credit), so every call site must share this one mapping.
var positiveLabels = map[string]struct{}{
	"approved": {},
	"hired":    {},
	"low risk": {},
	"low_risk": {},
}

// OutcomeForLabel maps a model_output label to its outcome bucket.
// Matching is case-insensitive. Any non-pending label outside the positive
// vocabulary counts as declined.
func OutcomeForLabel(label string) Outcome {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" || normalized == strings.ToLower(LabelPending) {
		return OutcomePending
	}
	if _, ok := positiveLabels[normalized]; ok {
		return OutcomePositive
	}
	return OutcomeNegative
}
