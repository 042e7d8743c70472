// Package ingest parses bulk upload files into application rows and policy
// lines. It accepts CSV with a header row or a JSON array of objects, sniffing
// the format from the payload when the caller does not name one.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/verdictlabs/verdict/internal/common"
)

// Format identifies a supported upload encoding.
type Format string

// Supported upload formats.
const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseApplications decodes an upload into one feature map per application.
// Numeric coercion is left to schema validation so that parse errors and
// validation errors stay distinguishable.
func ParseApplications(data []byte, format Format) ([]map[string]any, error) {
	switch format {
	case FormatCSV, FormatText:
		return parseCSV(data)
	case FormatJSON:
		return parseJSON(data)
	case FormatAuto:
		if looksLikeJSON(data) {
			return parseJSON(data)
		}
		return parseCSV(data)
	default:
		return nil, fmt.Errorf("%w: unsupported upload format %q", common.ErrValidation, format)
	}
}

// FormatForFilename maps a file extension to an upload format.
func FormatForFilename(name string) Format {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		return FormatCSV
	case strings.HasSuffix(strings.ToLower(name), ".json"):
		return FormatJSON
	case strings.HasSuffix(strings.ToLower(name), ".txt"):
		return FormatText
	default:
		return FormatAuto
	}
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func parseJSON(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rows); err != nil {
		// Tolerate a single object upload.
		var single map[string]any
		if singleErr := json.Unmarshal(bytes.TrimSpace(data), &single); singleErr == nil {
			return []map[string]any{single}, nil
		}
		return nil, fmt.Errorf("%w: invalid JSON upload: %w", common.ErrValidation, err)
	}
	return rows, nil
}

func parseCSV(data []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty CSV upload", common.ErrValidation)
		}
		return nil, fmt.Errorf("%w: invalid CSV header: %w", common.ErrValidation, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]any
	for line := 2; ; line++ {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: invalid CSV on line %d: %w", common.ErrValidation, line, readErr)
		}

		row := make(map[string]any, len(header))
		for i, key := range header {
			if key == "" || i >= len(record) {
				continue
			}
			row[key] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// policyColumns are the CSV header names accepted as the policy text column.
var policyColumns = []string{"text", "policy", "rule"}

// ParsePolicies decodes a policy upload into individual policy statements.
// JSON uploads may be an array of strings or of objects with a text/policy
// field; CSV uploads use the column of that name (or the only column); plain
// text splits into one policy per non-empty line.
func ParsePolicies(data []byte, format Format) ([]string, error) {
	switch format {
	case FormatJSON:
		return parsePolicyJSON(data)
	case FormatCSV:
		return parsePolicyCSV(data)
	case FormatText:
		return ParsePolicyLines(data), nil
	case FormatAuto:
		if looksLikeJSON(data) {
			return parsePolicyJSON(data)
		}
		if hasPolicyHeader(data) {
			return parsePolicyCSV(data)
		}
		return ParsePolicyLines(data), nil
	default:
		return nil, fmt.Errorf("%w: unsupported upload format %q", common.ErrValidation, format)
	}
}

func parsePolicyJSON(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)

	var asStrings []string
	if err := json.Unmarshal(trimmed, &asStrings); err == nil {
		return cleanPolicies(asStrings), nil
	}

	rows, err := parseJSON(trimmed)
	if err != nil {
		return nil, err
	}
	policies := make([]string, 0, len(rows))
	for i, row := range rows {
		text := policyField(row)
		if text == "" {
			return nil, fmt.Errorf("%w: policy entry %d has no text/policy field", common.ErrValidation, i+1)
		}
		policies = append(policies, text)
	}
	return policies, nil
}

func policyField(row map[string]any) string {
	for key, v := range row {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		for _, name := range policyColumns {
			if key == name {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func parsePolicyCSV(data []byte) ([]string, error) {
	rows, err := parseCSV(data)
	if err != nil {
		return nil, err
	}

	policies := make([]string, 0, len(rows))
	for i, row := range rows {
		text := policyField(row)
		if text == "" && len(row) == 1 {
			for _, v := range row {
				if s, ok := v.(string); ok {
					text = strings.TrimSpace(s)
				}
			}
		}
		if text == "" {
			return nil, fmt.Errorf("%w: CSV row %d has no policy text column", common.ErrValidation, i+1)
		}
		policies = append(policies, text)
	}
	return policies, nil
}

// hasPolicyHeader sniffs whether the first line is a CSV header naming a
// policy text column, which distinguishes a headered CSV from plain-text
// policies that merely contain commas.
func hasPolicyHeader(data []byte) bool {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return false
	}
	for _, cell := range header {
		cell = strings.ToLower(strings.TrimSpace(cell))
		for _, name := range policyColumns {
			if cell == name {
				return true
			}
		}
	}
	return false
}

func cleanPolicies(raw []string) []string {
	policies := make([]string, 0, len(raw))
	for _, text := range raw {
		if text = strings.TrimSpace(text); text != "" {
			policies = append(policies, text)
		}
	}
	return policies
}

// ParsePolicyLines splits a plain-text policy upload into individual policy
// statements, one per non-empty line. Lines starting with # are comments.
func ParsePolicyLines(data []byte) []string {
	var policies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		policies = append(policies, line)
	}
	return policies
}
