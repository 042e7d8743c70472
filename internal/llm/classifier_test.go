package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/internal/model"
)

// stubClient returns canned responses and records the prompts it saw.
type stubClient struct {
	err      error
	response string
	prompts  []string
}

func (s *stubClient) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newStubClassifier(client Client) *Classifier {
	return &Classifier{
		client:      client,
		logger:      slog.Default(),
		rateLimiter: newRateLimiter(600),
		timeout:     5 * time.Second,
	}
}

func TestClassifier_Classify(t *testing.T) {
	stub := &stubClient{response: decisionJSON}
	classifier := newStubClassifier(stub)

	result, err := classifier.Classify(context.Background(), model.DomainLoan,
		map[string]any{"credit_score": 720.0},
		[]model.Policy{{Text: "Never discriminate by age."}},
		nil)
	require.NoError(t, err)

	assert.Equal(t, "APPROVED", result.Decision.Status)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Never discriminate by age.")
}

func TestClassifier_ClassifyProviderError(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}
	classifier := newStubClassifier(stub)

	_, err := classifier.Classify(context.Background(), model.DomainLoan, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClassifier_ClassifyUnparseableOutputFallsBack(t *testing.T) {
	stub := &stubClient{response: "I am not sure about this one."}
	classifier := newStubClassifier(stub)

	result, err := classifier.Classify(context.Background(), model.DomainLoan, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "REJECTED", result.Decision.Status)
	assert.InDelta(t, 0.5, result.Decision.Confidence, 0.001)
	assert.Contains(t, result.Decision.Reasoning, "manual review")
}

func TestClassifier_ExplainOverride(t *testing.T) {
	stub := &stubClient{response: `{"summary": "The reviewer verified income by phone."}`}
	classifier := newStubClassifier(stub)

	text, err := classifier.ExplainOverride(context.Background(), model.DomainLoan,
		map[string]any{"credit_score": 640.0}, "REJECTED", "Approved", "verified by phone")
	require.NoError(t, err)

	assert.Equal(t, "The reviewer verified income by phone.", text)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Agent's Comment: verified by phone")
}

func TestNewClassifier_UnknownProvider(t *testing.T) {
	_, err := NewClassifier(Config{Provider: "bard"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}
