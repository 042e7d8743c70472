package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
	"github.com/verdictlabs/verdict/internal/storage"
	"github.com/verdictlabs/verdict/internal/workflow"
)

func newTestServer(t *testing.T) (*httptest.Server, *workflow.MockClassifier) {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	classifier := workflow.NewMockClassifier()
	engine := workflow.NewWithConfig(db, classifier, workflow.Config{
		Synchronous: true,
		Retry:       service.RetryOptions{MaxAttempts: 1, InitialDelay: 1},
	})

	ts := httptest.NewServer(New(engine, db, "").Router())
	t.Cleanup(ts.Close)
	return ts, classifier
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submitLoan(t *testing.T, ts *httptest.Server, score float64) model.Application {
	t.Helper()
	resp := postJSON(t, ts.URL+"/applications?domain=loan", map[string]any{
		"applicant_name": "Ada Lovelace",
		"age":            34,
		"monthly_income": 5000,
		"existing_debt":  2000,
		"credit_score":   score,
		"loan_amount":    25000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Application](t, resp)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestSubmitApplication(t *testing.T) {
	ts, _ := newTestServer(t)

	app := submitLoan(t, ts, 720)
	assert.Equal(t, model.StatusCompleted, app.Status)
	assert.Equal(t, "APPROVED", app.ModelOutput.Label)
	assert.Len(t, app.ID, 8)
}

func TestSubmitApplication_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		url  string
		body string
	}{
		{name: "missing domain", url: "/applications", body: "{}"},
		{name: "unknown domain", url: "/applications?domain=mortgage", body: "{}"},
		{name: "malformed body", url: "/applications?domain=loan", body: "{nope"},
		{name: "missing fields", url: "/applications?domain=loan", body: `{"age": 30}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.url, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetApplication(t *testing.T) {
	ts, _ := newTestServer(t)
	app := submitLoan(t, ts, 720)

	resp, err := http.Get(ts.URL + "/applications/" + app.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[model.Application](t, resp)
	assert.Equal(t, app.ID, fetched.ID)

	missing, err := http.Get(ts.URL + "/applications/nope1234")
	require.NoError(t, err)
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestListApplications_Filters(t *testing.T) {
	ts, _ := newTestServer(t)
	submitLoan(t, ts, 720) // approved
	submitLoan(t, ts, 500) // rejected

	type listResponse struct {
		Applications []model.Application `json:"applications"`
		Count        int                 `json:"count"`
	}

	tests := []struct {
		name   string
		query  string
		expect int
	}{
		{name: "all", query: "?domain=loan", expect: 2},
		{name: "approved only", query: "?domain=loan&filter=approved", expect: 1},
		{name: "denied only", query: "?domain=loan&filter=denied", expect: 1},
		{name: "pending empty", query: "?domain=loan&filter=pending", expect: 0},
		{name: "other domain empty", query: "?domain=job", expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/applications" + tt.query)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			list := decode[listResponse](t, resp)
			assert.Equal(t, tt.expect, list.Count)
		})
	}

	t.Run("bad filter", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/applications?domain=loan&filter=weird")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestReview(t *testing.T) {
	ts, classifier := newTestServer(t)
	classifier.Confidence = 0.60
	app := submitLoan(t, ts, 720)
	require.Equal(t, model.StatusPendingHuman, app.Status)

	resp := postJSON(t, ts.URL+"/applications/"+app.ID+"/review", map[string]string{
		"decision":    "Denied",
		"explanation": "Income could not be verified.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decode[model.Application](t, resp)

	assert.Equal(t, model.StatusCompleted, decided.Status)
	assert.Equal(t, "Denied", decided.ModelOutput.Label)
	assert.True(t, decided.IsOverride)
}

func TestReview_InvalidDecision(t *testing.T) {
	ts, _ := newTestServer(t)
	app := submitLoan(t, ts, 720)

	resp := postJSON(t, ts.URL+"/applications/"+app.ID+"/review", map[string]string{
		"decision": "escalate",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditExplanation(t *testing.T) {
	ts, _ := newTestServer(t)
	app := submitLoan(t, ts, 720)

	body, err := json.Marshal(map[string]string{"explanation": "Rewritten."})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/applications/"+app.ID+"/explanation", bytes.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.Application](t, resp)
	assert.Equal(t, "Rewritten.", updated.Explanation.Summary)
}

func TestBatchUpload_CSV(t *testing.T) {
	ts, _ := newTestServer(t)

	csvBody := "applicant_name,age,monthly_income,existing_debt,credit_score,loan_amount\n" +
		"Ada,34,5000,2000,720,25000\n" +
		"Broken,oops,5000,2000,720,25000\n"

	resp, err := http.Post(ts.URL+"/applications/batch?domain=loan&format=csv", "text/csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[workflow.BatchResult](t, resp)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
}

func TestStats(t *testing.T) {
	ts, _ := newTestServer(t)
	submitLoan(t, ts, 720)

	resp, err := http.Get(ts.URL + "/applications/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	type statsResponse struct {
		Domains []service.DomainStats `json:"domains"`
	}
	stats := decode[statsResponse](t, resp)
	require.Len(t, stats.Domains, len(model.Domains))
	for _, tile := range stats.Domains {
		if tile.Domain == model.DomainLoan {
			assert.Equal(t, 1, tile.Total)
			assert.Equal(t, 1, tile.Approved)
		}
	}
}

func TestPolicies_CRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/policies", map[string]string{
		"domain": "loan",
		"text":   "Reject loans above 10x monthly income.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Policy](t, resp)
	assert.Len(t, created.ID, 8)
	assert.Equal(t, model.DomainLoan, created.Domain)

	listResp, err := http.Get(ts.URL + "/policies?domain=loan")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	type domainPolicies struct {
		Domain   model.Domain   `json:"domain"`
		Policies []model.Policy `json:"policies"`
	}
	listed := decode[domainPolicies](t, listResp)
	require.Len(t, listed.Policies, 1)

	allResp, err := http.Get(ts.URL + "/policies")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, allResp.StatusCode)
	type allPolicies struct {
		Policies map[model.Domain][]model.Policy `json:"policies"`
	}
	all := decode[allPolicies](t, allResp)
	assert.Len(t, all.Policies, len(model.PolicyDomains))

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/policies/loan/%s", ts.URL, created.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = delResp.Body.Close() }()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	again, err := http.DefaultClient.Do(req.Clone(req.Context()))
	require.NoError(t, err)
	defer func() { _ = again.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestPolicies_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/policies", map[string]string{"domain": "mortgage", "text": "x"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	empty := postJSON(t, ts.URL+"/policies", map[string]string{"domain": "loan", "text": "  "})
	defer func() { _ = empty.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
}

func TestPolicies_Upload(t *testing.T) {
	ts, _ := newTestServer(t)

	body := "# rules\nNever discriminate by age.\nReject incomplete applications.\n"
	resp, err := http.Post(ts.URL+"/policies/upload?domain=global", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	type uploadResponse struct {
		Domain   model.Domain   `json:"domain"`
		Added    int            `json:"added"`
		Policies []model.Policy `json:"policies"`
	}
	uploaded := decode[uploadResponse](t, resp)
	assert.Equal(t, 2, uploaded.Added)
}

func TestPolicies_UploadCSVAndJSON(t *testing.T) {
	ts, _ := newTestServer(t)

	type uploadResponse struct {
		Domain   model.Domain   `json:"domain"`
		Added    int            `json:"added"`
		Policies []model.Policy `json:"policies"`
	}

	csvBody := "id,text\n1,Never discriminate by age.\n2,Reject incomplete applications.\n"
	resp, err := http.Post(ts.URL+"/policies/upload?domain=loan&format=csv", "text/csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	fromCSV := decode[uploadResponse](t, resp)
	require.Equal(t, 2, fromCSV.Added)
	assert.Equal(t, "Never discriminate by age.", fromCSV.Policies[0].Text,
		"the header row is not a policy")

	jsonBody := `["Claims above $10000 need a second reviewer.", "Verify identity first."]`
	resp, err = http.Post(ts.URL+"/policies/upload?domain=insurance&format=json", "application/json", strings.NewReader(jsonBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	fromJSON := decode[uploadResponse](t, resp)
	require.Equal(t, 2, fromJSON.Added)
	assert.Equal(t, "Claims above $10000 need a second reviewer.", fromJSON.Policies[0].Text,
		"each array element is one policy")
}
