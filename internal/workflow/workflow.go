// Package workflow orchestrates the lifecycle of submitted applications:
// intake, automated classification, and human review.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
)

// Engine coordinates storage and the classifier, serializing writes per
// decision id and guaranteeing at most one in-flight classification per
// application.
type Engine struct {
	storage    service.Storage
	classifier Classifier
	config     Config
	locks      *keyedMutex
	inflight   sync.Map
	background sync.WaitGroup
}

// Config holds tunables for the decision workflow.
type Config struct {
	// AutoCompleteConfidence is the minimum classifier confidence at which
	// a decision is finalized without human review.
	AutoCompleteConfidence float64
	// HistoryLimit caps how many recent decisions are fed back to the
	// classifier as context.
	HistoryLimit int
	// Retry controls how classification attempts are retried.
	Retry service.RetryOptions
	// Synchronous makes Submit classify inline instead of in a background
	// goroutine. Used by tests and batch ingestion.
	Synchronous bool
}

// DefaultConfig returns the default workflow configuration.
func DefaultConfig() Config {
	return Config{
		AutoCompleteConfidence: 0.85,
		HistoryLimit:           5,
	}
}

// New creates a workflow engine with default configuration.
func New(storage service.Storage, classifier Classifier) *Engine {
	return NewWithConfig(storage, classifier, DefaultConfig())
}

// NewWithConfig creates a workflow engine with custom configuration.
func NewWithConfig(storage service.Storage, classifier Classifier, config Config) *Engine {
	if config.AutoCompleteConfidence <= 0 {
		config.AutoCompleteConfidence = 0.85
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 5
	}
	return &Engine{
		storage:    storage,
		classifier: classifier,
		config:     config,
		locks:      newKeyedMutex(),
	}
}

// Submit validates and stores a new application, then kicks off
// classification. The returned application is in StatusPendingAI.
func (e *Engine) Submit(ctx context.Context, domain model.Domain, input map[string]any) (*model.Application, error) {
	features, err := model.ValidateInput(domain, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	app := &model.Application{
		ID:            newDecisionID(),
		Domain:        domain,
		ApplicantName: model.ApplicantName(features),
		Status:        model.StatusPendingAI,
		InputFeatures: features,
		ModelOutput:   model.ModelOutput{Label: model.LabelPending},
	}

	if err := e.storage.CreateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	slog.Info("Application submitted",
		"decision_id", app.ID,
		"domain", app.Domain,
		"applicant", app.ApplicantName)

	if e.config.Synchronous {
		if classifyErr := e.Classify(ctx, app.ID); classifyErr != nil {
			slog.Error("Classification failed", "decision_id", app.ID, "error", classifyErr)
		}
		return e.storage.GetApplication(ctx, app.ID)
	}

	e.background.Add(1)
	go func(id string) {
		defer e.background.Done()
		bgCtx := context.WithoutCancel(ctx)
		if classifyErr := e.Classify(bgCtx, id); classifyErr != nil {
			slog.Error("Classification failed", "decision_id", id, "error", classifyErr)
		}
	}(app.ID)

	return app, nil
}

// Classify runs the classifier for a pending application and applies the
// resulting transition. It is a no-op when a classification for the same
// decision id is already in flight or the application already has a result.
func (e *Engine) Classify(ctx context.Context, id string) error {
	if _, loaded := e.inflight.LoadOrStore(id, struct{}{}); loaded {
		slog.Debug("Classification already in flight", "decision_id", id)
		return nil
	}
	defer e.inflight.Delete(id)

	app, err := e.storage.GetApplication(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load application: %w", err)
	}
	if app.Classified() {
		return nil
	}

	policies, err := e.applicablePolicies(ctx, app.Domain)
	if err != nil {
		return err
	}

	history, err := e.storage.RecentMemory(ctx, app.Domain, e.config.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load decision history: %w", err)
	}

	var result *model.AIResult
	err = common.WithRetry(ctx, func() error {
		var classifyErr error
		result, classifyErr = e.classifier.Classify(ctx, app.Domain, app.InputFeatures, policies, history)
		if classifyErr != nil && common.IsRetryable(classifyErr) {
			return &common.RetryableError{Err: classifyErr, Retryable: true}
		}
		return classifyErr
	}, e.config.Retry)
	if err != nil {
		msg := err.Error()
		if _, updateErr := e.storage.UpdateApplication(ctx, id, service.ApplicationUpdate{LastError: &msg}); updateErr != nil {
			slog.Error("Failed to record classification error", "decision_id", id, "error", updateErr)
		}
		return fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	return e.applyClassification(ctx, app, result)
}

// applyClassification persists the classifier's verdict and transitions the
// application to completed or pending_human depending on confidence.
func (e *Engine) applyClassification(ctx context.Context, app *model.Application, result *model.AIResult) error {
	unlock := e.locks.lock(app.ID)
	defer unlock()

	status := model.StatusPendingHuman
	if result.Decision.Confidence >= e.config.AutoCompleteConfidence {
		status = model.StatusCompleted
	}

	output := &model.ModelOutput{
		Label:      result.Decision.Status,
		Confidence: result.Decision.Confidence,
	}
	summary := result.Decision.Reasoning
	noError := ""

	update := service.ApplicationUpdate{
		Status:             &status,
		ModelOutput:        output,
		AIResult:           result,
		ExplanationSummary: &summary,
		LastError:          &noError,
	}

	if _, err := e.storage.UpdateApplication(ctx, app.ID, update); err != nil {
		return fmt.Errorf("failed to apply classification: %w", err)
	}

	slog.Info("Application classified",
		"decision_id", app.ID,
		"domain", app.Domain,
		"label", result.Decision.Status,
		"confidence", result.Decision.Confidence,
		"status", status)

	entry := model.MemoryEntry{
		Domain:    app.Domain,
		Label:     result.Decision.Status,
		Reasoning: result.Decision.Reasoning,
	}
	if err := e.storage.AddMemory(ctx, &entry); err != nil {
		slog.Warn("Failed to record decision memory", "decision_id", app.ID, "error", err)
	}

	return nil
}

// HumanDecide records a terminal human decision for an application awaiting
// review. Re-deciding an already completed application is permitted and
// updates it in place.
func (e *Engine) HumanDecide(ctx context.Context, id, decision, explanation string) (*model.Application, error) {
	status, err := canonicalDecision(decision)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(id)
	defer unlock()

	app, err := e.storage.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status == model.StatusPendingAI {
		return nil, fmt.Errorf("%w: application %s has no classifier result yet", common.ErrNotReviewable, id)
	}

	// Re-applying the identical verdict is a no-op so repeated review
	// submissions never duplicate memory entries or re-fire the
	// override narrative.
	if app.Status == model.StatusCompleted &&
		app.ModelOutput.Label == status &&
		app.Explanation.Summary == explanation {
		return app, nil
	}

	isOverride := false
	var aiStatus string
	if app.AIResult != nil {
		aiStatus = app.AIResult.Decision.Status
		isOverride = model.OutcomeForLabel(status) != model.OutcomeForLabel(aiStatus)
	}

	completed := model.StatusCompleted
	update := service.ApplicationUpdate{
		Status:             &completed,
		ModelOutput:        &model.ModelOutput{Label: status, Confidence: app.ModelOutput.Confidence},
		ExplanationSummary: &explanation,
		IsOverride:         &isOverride,
	}

	updated, err := e.storage.UpdateApplication(ctx, id, update)
	if err != nil {
		return nil, err
	}

	slog.Info("Human decision recorded",
		"decision_id", id,
		"decision", status,
		"override", isOverride)

	entry := model.MemoryEntry{Domain: app.Domain, Label: status, Reasoning: explanation}
	if memErr := e.storage.AddMemory(ctx, &entry); memErr != nil {
		slog.Warn("Failed to record decision memory", "decision_id", id, "error", memErr)
	}

	if isOverride {
		e.explainOverrideAsync(ctx, updated, aiStatus, status, explanation)
	}

	return updated, nil
}

// explainOverrideAsync asks the classifier to narrate why the human verdict
// diverged from its own. Best effort: failures are logged and the decision
// stands without the narrative.
func (e *Engine) explainOverrideAsync(ctx context.Context, app *model.Application, aiStatus, humanStatus, comment string) {
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		bgCtx := context.WithoutCancel(ctx)

		text, err := e.classifier.ExplainOverride(bgCtx, app.Domain, app.InputFeatures, aiStatus, humanStatus, comment)
		if err != nil {
			slog.Warn("Override explanation unavailable", "decision_id", app.ID, "error", err)
			return
		}

		unlock := e.locks.lock(app.ID)
		defer unlock()
		if _, err := e.storage.UpdateApplication(bgCtx, app.ID, service.ApplicationUpdate{OverrideExplanation: &text}); err != nil {
			slog.Warn("Failed to store override explanation", "decision_id", app.ID, "error", err)
		}
	}()
}

// EditExplanation replaces the free-text explanation on a decision.
func (e *Engine) EditExplanation(ctx context.Context, id, explanation string) (*model.Application, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	return e.storage.UpdateApplication(ctx, id, service.ApplicationUpdate{ExplanationSummary: &explanation})
}

// Get returns a single application by decision id.
func (e *Engine) Get(ctx context.Context, id string) (*model.Application, error) {
	return e.storage.GetApplication(ctx, id)
}

// List returns applications for a domain filtered by outcome category.
func (e *Engine) List(ctx context.Context, domain model.Domain, filter service.ApplicationFilter) ([]model.Application, error) {
	if !filter.Valid() {
		return nil, fmt.Errorf("%w: unknown filter %q", common.ErrValidation, filter)
	}
	return e.storage.ListApplications(ctx, domain, filter)
}

// Stats returns per-domain decision counts.
func (e *Engine) Stats(ctx context.Context) ([]service.DomainStats, error) {
	return e.storage.DomainStats(ctx)
}

// RecoverPending re-triggers classification for applications left in
// StatusPendingAI by a crash or classifier outage.
func (e *Engine) RecoverPending(ctx context.Context) (int, error) {
	apps, err := e.storage.ListApplications(ctx, "", service.FilterAll)
	if err != nil {
		return 0, fmt.Errorf("failed to list applications: %w", err)
	}

	recovered := 0
	for _, app := range apps {
		if app.Status != model.StatusPendingAI {
			continue
		}
		recovered++
		e.background.Add(1)
		go func(id string) {
			defer e.background.Done()
			bgCtx := context.WithoutCancel(ctx)
			if err := e.Classify(bgCtx, id); err != nil {
				slog.Error("Recovery classification failed", "decision_id", id, "error", err)
			}
		}(app.ID)
	}

	if recovered > 0 {
		slog.Info("Recovering stalled classifications", "count", recovered)
	}
	return recovered, nil
}

// Wait blocks until all background classification and explanation work has
// drained. Used on shutdown and in tests.
func (e *Engine) Wait() {
	e.background.Wait()
}

// applicablePolicies returns the global policies plus the domain's own, in
// insertion order.
func (e *Engine) applicablePolicies(ctx context.Context, domain model.Domain) ([]model.Policy, error) {
	global, err := e.storage.ListPolicies(ctx, model.DomainGlobal)
	if err != nil {
		return nil, fmt.Errorf("failed to load global policies: %w", err)
	}
	scoped, err := e.storage.ListPolicies(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s policies: %w", domain, err)
	}
	return append(global, scoped...), nil
}

// canonicalDecision validates a human decision and normalizes its casing.
func canonicalDecision(decision string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "approved":
		return "Approved", nil
	case "denied":
		return "Denied", nil
	default:
		return "", fmt.Errorf("%w: %q (want Approved or Denied)", common.ErrInvalidDecision, decision)
	}
}

func newDecisionID() string {
	return uuid.NewString()[:8]
}
