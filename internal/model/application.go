// Package model defines the core domain models used throughout the application.
package model

import "time"

// Domain identifies one of the supported application categories.
type Domain string

// Supported application domains.
const (
	DomainLoan      Domain = "loan"
	DomainCredit    Domain = "credit"
	DomainInsurance Domain = "insurance"
	DomainJob       Domain = "job"

	// DomainGlobal is only valid for policies; it applies to all domains.
	DomainGlobal Domain = "global"
)

// Domains lists the domains an application may be submitted under.
var Domains = []Domain{DomainLoan, DomainCredit, DomainInsurance, DomainJob}

// Valid reports whether d is a submittable application domain.
func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an application.
type Status string

// Application lifecycle states.
const (
	StatusPendingAI    Status = "pending_ai"
	StatusPendingHuman Status = "pending_human"
	StatusCompleted    Status = "completed"
)

// LabelPending is the model_output label sentinel for "not yet classified".
const LabelPending = "Pending"

// ModelOutput is the headline classifier verdict attached to an application.
type ModelOutput struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Explanation holds the customer-facing text for a decision. It starts as
// the classifier's reasoning and may be rewritten by a reviewer at any time.
type Explanation struct {
	Summary string `json:"summary"`
}

// Application is one submitted case moving through the decision workflow.
type Application struct {
	CreatedAt           time.Time         `json:"timestamp"`
	UpdatedAt           time.Time         `json:"updated_at"`
	InputFeatures       map[string]any    `json:"input_features"`
	AIResult            *AIResult         `json:"ai_result,omitempty"`
	ID                  string            `json:"decision_id"`
	Domain              Domain            `json:"domain"`
	ApplicantName       string            `json:"applicant_name,omitempty"`
	Status              Status            `json:"status"`
	Explanation         Explanation       `json:"explanation"`
	OverrideExplanation string            `json:"override_explanation,omitempty"`
	LastError           string            `json:"last_error,omitempty"`
	ModelOutput         ModelOutput       `json:"model_output"`
	IsOverride          bool              `json:"is_override"`
}

// Terminal reports whether the application has reached a final state.
func (a *Application) Terminal() bool {
	return a.Status == StatusCompleted
}

// Classified reports whether the classifier has produced a result.
// model_output.label == "Pending" iff ai_result is absent.
func (a *Application) Classified() bool {
	return a.AIResult != nil
}

// Decided reports whether a verdict label has been assigned. A status
// watcher stops polling here: once the label leaves "Pending" the case
// either completed or is parked for human review.
func (a *Application) Decided() bool {
	return a.ModelOutput.Label != LabelPending
}
