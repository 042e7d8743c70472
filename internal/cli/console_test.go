package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
)

type fakeEngine struct {
	apps     []model.Application
	decision map[string]string
}

func (f *fakeEngine) List(_ context.Context, domain model.Domain, _ service.ApplicationFilter) ([]model.Application, error) {
	var out []model.Application
	for _, app := range f.apps {
		if app.Domain == domain {
			out = append(out, app)
		}
	}
	return out, nil
}

func (f *fakeEngine) HumanDecide(_ context.Context, id, decision, _ string) (*model.Application, error) {
	if f.decision == nil {
		f.decision = make(map[string]string)
	}
	f.decision[id] = decision
	return &model.Application{ID: id, Status: model.StatusCompleted, ModelOutput: model.ModelOutput{Label: decision}}, nil
}

func pendingApp(id string, domain model.Domain) model.Application {
	return model.Application{
		ID:            id,
		Domain:        domain,
		ApplicantName: "Ada Lovelace",
		Status:        model.StatusPendingHuman,
		InputFeatures: map[string]any{"credit_score": 640.0},
		ModelOutput:   model.ModelOutput{Label: "REJECTED", Confidence: 0.55},
		AIResult: &model.AIResult{
			Decision: model.Decision{Status: "REJECTED", Reasoning: "Borderline credit score.", Confidence: 0.55},
		},
	}
}

func TestConsole_ApproveAndSkip(t *testing.T) {
	engine := &fakeEngine{apps: []model.Application{
		pendingApp("case0001", model.DomainLoan),
		pendingApp("case0002", model.DomainLoan),
		{ID: "done0003", Domain: model.DomainLoan, Status: model.StatusCompleted},
	}}

	input := strings.NewReader("a\nIncome verified.\ns\n")
	var output bytes.Buffer

	console := NewConsole(engine, input, &output)
	require.NoError(t, console.Run(context.Background(), model.DomainLoan))

	assert.Equal(t, map[string]string{"case0001": "Approved"}, engine.decision)

	out := output.String()
	assert.Contains(t, out, "Review queue: 2 application(s)")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Borderline credit score.")
	assert.Contains(t, out, "1 decided, 1 skipped")
}

func TestConsole_QuitEndsSession(t *testing.T) {
	engine := &fakeEngine{apps: []model.Application{
		pendingApp("case0001", model.DomainLoan),
		pendingApp("case0002", model.DomainLoan),
	}}

	var output bytes.Buffer
	console := NewConsole(engine, strings.NewReader("q\n"), &output)
	require.NoError(t, console.Run(context.Background(), model.DomainLoan))

	assert.Empty(t, engine.decision)
	assert.Contains(t, output.String(), "0 decided")
}

func TestConsole_InvalidInputReprompts(t *testing.T) {
	engine := &fakeEngine{apps: []model.Application{pendingApp("case0001", model.DomainLoan)}}

	var output bytes.Buffer
	console := NewConsole(engine, strings.NewReader("x\nd\nFraud flags.\n"), &output)
	require.NoError(t, console.Run(context.Background(), model.DomainLoan))

	assert.Equal(t, "Denied", engine.decision["case0001"])
	assert.Contains(t, output.String(), "Please answer")
}

func TestConsole_EmptyQueue(t *testing.T) {
	var output bytes.Buffer
	console := NewConsole(&fakeEngine{}, strings.NewReader(""), &output)
	require.NoError(t, console.Run(context.Background(), ""))
	assert.Contains(t, output.String(), "No applications waiting")
}
