package model

// Decision is the classifier's recommendation for an application.
type Decision struct {
	Status     string  `json:"status"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// Fairness is the classifier's self-assessment of its own decision.
type Fairness struct {
	Assessment string `json:"assessment"`
	Concerns   string `json:"concerns"`
}

// KeyMetrics are the headline numbers the classifier attaches to a decision.
type KeyMetrics struct {
	CriticalFactors     []string `json:"critical_factors"`
	RiskScore           float64  `json:"risk_score"`
	ApprovalProbability float64  `json:"approval_probability"`
}

// AIResult is the full classifier output for an application. It is written
// once when classification completes and never mutated afterwards.
type AIResult struct {
	Decision             Decision   `json:"decision"`
	AlternativeReasoning string     `json:"alternative_reasoning,omitempty"`
	Counterfactuals      []string   `json:"counterfactuals"`
	Fairness             Fairness   `json:"fairness"`
	KeyMetrics           KeyMetrics `json:"key_metrics"`
}
