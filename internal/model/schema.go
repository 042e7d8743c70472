package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FieldKind is the expected type of a form field.
type FieldKind int

// Field kinds.
const (
	FieldNumber FieldKind = iota
	FieldString
)

// Field is one entry in a domain's form schema.
type Field struct {
	Name string
	Kind FieldKind
}

// schemas defines the required fields per domain. Extra fields in a payload
// are carried through untouched; applicant names are optional everywhere.
var schemas = map[Domain][]Field{
	DomainLoan: {
		{Name: "age", Kind: FieldNumber},
		{Name: "monthly_income", Kind: FieldNumber},
		{Name: "existing_debt", Kind: FieldNumber},
		{Name: "credit_score", Kind: FieldNumber},
		{Name: "loan_amount", Kind: FieldNumber},
	},
	DomainCredit: {
		{Name: "credit_score", Kind: FieldNumber},
		{Name: "credit_utilization", Kind: FieldNumber},
	},
	DomainInsurance: {
		{Name: "age", Kind: FieldNumber},
		{Name: "claim_amount", Kind: FieldNumber},
	},
	DomainJob: {
		{Name: "skill_score", Kind: FieldNumber},
		{Name: "experience_years", Kind: FieldNumber},
	},
}

// applicantNameKeys are accepted aliases for the optional display name.
var applicantNameKeys = []string{"full_name", "name", "applicant_name", "customer_name"}

// RequiredFields returns the schema for a domain.
func RequiredFields(d Domain) []Field {
	return schemas[d]
}

// SchemaError describes why a submission payload failed validation.
type SchemaError struct {
	Domain  Domain
	Missing []string
	Invalid []string
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing fields: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid fields: %s", strings.Join(e.Invalid, ", ")))
	}
	return fmt.Sprintf("%s application: %s", e.Domain, strings.Join(parts, "; "))
}

// ValidateInput checks a submission payload against the domain's schema and
// returns a copy with numeric fields coerced to float64. Unknown fields are
// preserved as-is. A nil error means the payload is accepted.
func ValidateInput(domain Domain, payload map[string]any) (map[string]any, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("unknown domain %q", domain)
	}

	features := make(map[string]any, len(payload))
	for k, v := range payload {
		features[k] = v
	}

	schemaErr := &SchemaError{Domain: domain}
	for _, field := range schemas[domain] {
		value, ok := features[field.Name]
		if !ok || value == nil {
			schemaErr.Missing = append(schemaErr.Missing, field.Name)
			continue
		}

		if field.Kind == FieldNumber {
			coerced, err := coerceNumber(value)
			if err != nil {
				schemaErr.Invalid = append(schemaErr.Invalid, field.Name)
				continue
			}
			features[field.Name] = coerced
		}
	}

	if len(schemaErr.Missing) > 0 || len(schemaErr.Invalid) > 0 {
		sort.Strings(schemaErr.Missing)
		sort.Strings(schemaErr.Invalid)
		return nil, schemaErr
	}

	return features, nil
}

// ApplicantName extracts the optional display name from a payload.
func ApplicantName(payload map[string]any) string {
	for _, key := range applicantNameKeys {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// coerceNumber converts JSON scalar values into float64. Strings are
// accepted when they parse cleanly, since CSV uploads arrive untyped.
func coerceNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported numeric value %T", value)
	}
}
