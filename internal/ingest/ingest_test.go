package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/internal/common"
)

func TestParseApplications_CSV(t *testing.T) {
	data := []byte("applicant_name,credit_score,loan_amount\n" +
		"Ada Lovelace,720,25000\n" +
		"Charles Babbage, 580 ,40000\n")

	rows, err := ParseApplications(data, FormatCSV)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Ada Lovelace", rows[0]["applicant_name"])
	assert.Equal(t, "720", rows[0]["credit_score"], "numeric coercion happens at validation")
	assert.Equal(t, "580", rows[1]["credit_score"], "cell whitespace is trimmed")
}

func TestParseApplications_CSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty file", data: ""},
		{name: "ragged quoting", data: "a,b\n\"unterminated,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseApplications([]byte(tt.data), FormatCSV)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestParseApplications_JSON(t *testing.T) {
	data := []byte(`[
		{"applicant_name": "Ada", "credit_score": 720},
		{"applicant_name": "Charles", "credit_score": 580}
	]`)

	rows, err := ParseApplications(data, FormatJSON)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(720), rows[0]["credit_score"])
}

func TestParseApplications_JSONSingleObject(t *testing.T) {
	rows, err := ParseApplications([]byte(`{"applicant_name": "Ada"}`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestParseApplications_AutoSniffsFormat(t *testing.T) {
	jsonRows, err := ParseApplications([]byte("  [{\"a\": 1}]"), FormatAuto)
	require.NoError(t, err)
	assert.Len(t, jsonRows, 1)

	csvRows, err := ParseApplications([]byte("a,b\n1,2\n"), FormatAuto)
	require.NoError(t, err)
	assert.Len(t, csvRows, 1)
}

func TestFormatForFilename(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatForFilename("batch.CSV"))
	assert.Equal(t, FormatJSON, FormatForFilename("batch.json"))
	assert.Equal(t, FormatText, FormatForFilename("rules.txt"))
	assert.Equal(t, FormatAuto, FormatForFilename("upload.dat"))
}

func TestParsePolicyLines(t *testing.T) {
	data := []byte("# underwriting rules\nReject loans above 10x monthly income.\n\n  Never discriminate by age.  \n")

	policies := ParsePolicyLines(data)
	require.Len(t, policies, 2)
	assert.Equal(t, "Reject loans above 10x monthly income.", policies[0])
	assert.Equal(t, "Never discriminate by age.", policies[1])
}

func TestParsePolicies_CSVUsesTextColumn(t *testing.T) {
	data := []byte("id,text\n1,Reject loans above 10x monthly income.\n2,Never discriminate by age.\n")

	policies, err := ParsePolicies(data, FormatCSV)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "Reject loans above 10x monthly income.", policies[0])
	assert.Equal(t, "Never discriminate by age.", policies[1])
}

func TestParsePolicies_CSVSingleColumn(t *testing.T) {
	data := []byte("rules\nClaims above $10000 need a second reviewer.\n")

	policies, err := ParsePolicies(data, FormatCSV)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "Claims above $10000 need a second reviewer.", policies[0])
}

func TestParsePolicies_JSON(t *testing.T) {
	asStrings, err := ParsePolicies([]byte(`["Rule one.", " Rule two. ", ""]`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rule one.", "Rule two."}, asStrings)

	asObjects, err := ParsePolicies([]byte(`[{"text": "Rule one."}, {"policy": "Rule two."}]`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rule one.", "Rule two."}, asObjects)

	_, err = ParsePolicies([]byte(`[{"note": "no policy field"}]`), FormatJSON)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestParsePolicies_AutoSniffsFormat(t *testing.T) {
	fromJSON, err := ParsePolicies([]byte(`  ["Rule one."]`), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rule one."}, fromJSON)

	fromCSV, err := ParsePolicies([]byte("policy\nRule one.\n"), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rule one."}, fromCSV)

	fromText, err := ParsePolicies([]byte("Rule with, a comma.\nSecond rule.\n"), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rule with, a comma.", "Second rule."}, fromText)
}
