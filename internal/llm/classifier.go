package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/model"
)

// Classifier turns application payloads into decision recommendations by
// prompting an LLM provider. It owns rate limiting and per-call deadlines;
// retry policy belongs to the caller.
type Classifier struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	timeout     time.Duration
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	CallTimeout    time.Duration
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}

// NewClassifier creates a new LLM-backed classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		client, err = newOllamaClient(cfg)
	case "openai":
		client, err = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		client:      client,
		logger:      logger,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		timeout:     timeout,
	}, nil
}

// Request carries everything the classifier needs for one decision.
type Request struct {
	Features map[string]any
	Policies []model.Policy
	History  []model.MemoryEntry
	Domain   model.Domain
}

// Classify evaluates an application and returns the structured result.
// A hung provider is cut off by the call timeout so a record can never be
// stuck waiting on inference forever.
func (c *Classifier) Classify(ctx context.Context, domain model.Domain, features map[string]any, policies []model.Policy, history []model.MemoryEntry) (*model.AIResult, error) {
	req := Request{Domain: domain, Features: features, Policies: policies, History: history}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	raw, err := c.client.Generate(callCtx, buildDecisionPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	result, err := parseDecision(raw)
	if err != nil {
		// Small local models occasionally emit junk. A conservative
		// rejection keeps the record moving into human review instead
		// of burning the retry budget on output we cannot fix.
		c.logger.Warn("model output unparseable, using fallback decision",
			"domain", req.Domain,
			"output_prefix", prefix(raw, 120),
			"error", err)
		result = fallbackDecision()
	}

	c.logger.Info("application classified",
		"domain", req.Domain,
		"status", result.Decision.Status,
		"confidence", result.Decision.Confidence,
		"duration", time.Since(started))

	return result, nil
}

// OverrideRequest describes a human decision that disagreed with the AI.
type OverrideRequest struct {
	Features      map[string]any
	Domain        model.Domain
	AIStatus      string
	HumanStatus   string
	ReviewComment string
}

// ExplainOverride asks the model for a customer-facing explanation of why
// a reviewer overrode its recommendation.
func (c *Classifier) ExplainOverride(ctx context.Context, domain model.Domain, features map[string]any, aiStatus, humanStatus, comment string) (string, error) {
	req := OverrideRequest{
		Domain:        domain,
		Features:      features,
		AIStatus:      aiStatus,
		HumanStatus:   humanStatus,
		ReviewComment: comment,
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Generate(callCtx, buildOverridePrompt(req))
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	explanation, err := parseOverrideExplanation(raw)
	if err != nil {
		return "", fmt.Errorf("malformed model output: %w", err)
	}

	return explanation, nil
}

// fallbackDecision is returned when the model's output cannot be parsed.
// The low confidence guarantees the case lands in the human review queue.
func fallbackDecision() *model.AIResult {
	return &model.AIResult{
		Decision: model.Decision{
			Status:     "REJECTED",
			Confidence: 0.5,
			Reasoning:  "The automated analysis could not be completed due to a system error; the application requires manual review.",
		},
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
