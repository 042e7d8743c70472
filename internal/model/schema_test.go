package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		payload     map[string]any
		name        string
		domain      Domain
		wantMissing []string
		wantInvalid []string
		wantErr     bool
	}{
		{
			name:   "valid loan application",
			domain: DomainLoan,
			payload: map[string]any{
				"applicant_name": "Ada Lovelace",
				"age":            34,
				"monthly_income": 5000,
				"existing_debt":  2000,
				"credit_score":   720,
				"loan_amount":    25000,
			},
		},
		{
			name:   "numeric strings coerced for CSV rows",
			domain: DomainCredit,
			payload: map[string]any{
				"credit_score":       "712",
				"credit_utilization": "0.35",
			},
		},
		{
			name:        "missing fields reported sorted",
			domain:      DomainJob,
			payload:     map[string]any{"skill_score": 80},
			wantErr:     true,
			wantMissing: []string{"experience_years"},
		},
		{
			name:   "non-numeric value rejected",
			domain: DomainInsurance,
			payload: map[string]any{
				"age":          "forty",
				"claim_amount": 5000,
			},
			wantErr:     true,
			wantInvalid: []string{"age"},
		},
		{
			name:    "unknown domain",
			domain:  Domain("mortgage"),
			payload: map[string]any{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, err := ValidateInput(tt.domain, tt.payload)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Nil(t, features)

			var schemaErr *SchemaError
			if len(tt.wantMissing) > 0 || len(tt.wantInvalid) > 0 {
				require.ErrorAs(t, err, &schemaErr)
				assert.Equal(t, tt.wantMissing, schemaErr.Missing)
				assert.Equal(t, tt.wantInvalid, schemaErr.Invalid)
			}
		})
	}
}

func TestValidateInput_CoercesToFloat(t *testing.T) {
	features, err := ValidateInput(DomainCredit, map[string]any{
		"credit_score":       712,
		"credit_utilization": "0.35",
	})
	require.NoError(t, err)

	assert.Equal(t, 712.0, features["credit_score"])
	assert.Equal(t, 0.35, features["credit_utilization"])
}

func TestValidateInput_KeepsExtraFields(t *testing.T) {
	features, err := ValidateInput(DomainJob, map[string]any{
		"applicant_name":   "Grace Hopper",
		"skill_score":      88,
		"experience_years": 12,
		"referral":         "internal",
	})
	require.NoError(t, err)
	assert.Equal(t, "internal", features["referral"])
}

func TestApplicantName(t *testing.T) {
	tests := []struct {
		payload map[string]any
		name    string
		want    string
	}{
		{name: "applicant_name key", payload: map[string]any{"applicant_name": "Ada"}, want: "Ada"},
		{name: "full_name alias", payload: map[string]any{"full_name": "Grace Hopper"}, want: "Grace Hopper"},
		{name: "no name", payload: map[string]any{"age": 30}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplicantName(tt.payload))
		})
	}
}

func TestOutcomeForLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Outcome
	}{
		{label: "Pending", want: OutcomePending},
		{label: "", want: OutcomePending},
		{label: "APPROVED", want: OutcomePositive},
		{label: "hired", want: OutcomePositive},
		{label: "Low Risk", want: OutcomePositive},
		{label: "low_risk", want: OutcomePositive},
		{label: "REJECTED", want: OutcomeNegative},
		{label: "Denied", want: OutcomeNegative},
		{label: "high_risk", want: OutcomeNegative},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeForLabel(tt.label))
		})
	}
}

func TestDomainValidation(t *testing.T) {
	assert.True(t, DomainLoan.Valid())
	assert.False(t, DomainGlobal.Valid(), "global is a policy scope, not a submission domain")
	assert.True(t, ValidPolicyDomain(DomainGlobal))
	assert.False(t, ValidPolicyDomain(Domain("mortgage")))
}
