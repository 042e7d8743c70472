package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
	"github.com/verdictlabs/verdict/internal/storage"
)

func newTestEngine(t *testing.T, classifier Classifier, config Config) (*Engine, service.Storage) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	config.Synchronous = true
	config.Retry = service.RetryOptions{MaxAttempts: 2, InitialDelay: 1, Multiplier: 2}
	return NewWithConfig(db, classifier, config), db
}

func loanInput(score, income, debt float64) map[string]any {
	return map[string]any{
		"applicant_name": "Ada Lovelace",
		"age":            34,
		"monthly_income": income,
		"existing_debt":  debt,
		"credit_score":   score,
		"loan_amount":    25000,
	}
}

func TestSubmit_AutoCompletesConfidentDecision(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, app.Status)
	assert.Equal(t, "APPROVED", app.ModelOutput.Label)
	assert.InDelta(t, 0.91, app.ModelOutput.Confidence, 0.001)
	require.NotNil(t, app.AIResult)
	assert.NotEmpty(t, app.Explanation.Summary)
	assert.Equal(t, "Ada Lovelace", app.ApplicantName)
	assert.Len(t, app.ID, 8)
}

func TestSubmit_LowConfidenceAwaitsReview(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Confidence = 0.60
	engine, _ := newTestEngine(t, classifier, DefaultConfig())

	app, err := engine.Submit(context.Background(), model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPendingHuman, app.Status)
	assert.Equal(t, "APPROVED", app.ModelOutput.Label)
	require.NotNil(t, app.AIResult)
}

func TestSubmit_RejectsInvalidInput(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		input  map[string]any
		name   string
		domain model.Domain
	}{
		{
			name:   "unknown domain",
			domain: model.Domain("mortgage"),
			input:  loanInput(700, 4000, 1000),
		},
		{
			name:   "missing required field",
			domain: model.DomainLoan,
			input:  map[string]any{"applicant_name": "Bob", "age": 40},
		},
		{
			name:   "non-numeric feature",
			domain: model.DomainJob,
			input:  map[string]any{"applicant_name": "Bob", "skill_score": "excellent", "experience_years": 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Submit(ctx, tt.domain, tt.input)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestSubmit_ClassifierFailureLeavesPendingAI(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Err = errors.New("model unavailable")
	engine, db := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPendingAI, app.Status)
	assert.Equal(t, model.LabelPending, app.ModelOutput.Label)
	assert.Nil(t, app.AIResult)
	assert.Contains(t, app.LastError, "model unavailable")

	// The record stays adoptable: once the classifier recovers, a new
	// classification run completes it.
	classifier.Err = nil
	require.NoError(t, engine.Classify(ctx, app.ID))

	recovered, err := db.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, recovered.Status)
	assert.Empty(t, recovered.LastError)
}

func TestClassify_AlreadyClassifiedIsNoOp(t *testing.T) {
	classifier := NewMockClassifier()
	engine, _ := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	require.NoError(t, engine.Classify(ctx, app.ID))
	require.NoError(t, engine.Classify(ctx, app.ID))

	// Submit classified once; the later calls returned before reaching the
	// classifier.
	assert.Len(t, classifier.Calls(), 1)
}

func TestClassify_PassesPoliciesAndHistory(t *testing.T) {
	classifier := NewMockClassifier()
	engine, db := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	_, err := db.AddPolicy(ctx, model.DomainGlobal, "Never discriminate by age.")
	require.NoError(t, err)
	_, err = db.AddPolicy(ctx, model.DomainLoan, "Reject loans above 10x monthly income.")
	require.NoError(t, err)
	_, err = db.AddPolicy(ctx, model.DomainJob, "Prefer candidates with referrals.")
	require.NoError(t, err)

	require.NoError(t, db.AddMemory(ctx, &model.MemoryEntry{
		Domain: model.DomainLoan, Label: "APPROVED", Reasoning: "Solid income.",
	}))

	_, err = engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	calls := classifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 2, calls[0].Policies, "global + loan policies, not job")
	assert.Equal(t, 1, calls[0].History)
}

func TestHumanDecide_CompletesPendingReview(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Confidence = 0.60
	engine, _ := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)
	require.Equal(t, model.StatusPendingHuman, app.Status)

	decided, err := engine.HumanDecide(ctx, app.ID, "approved", "Income verified by phone.")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, decided.Status)
	assert.Equal(t, "Approved", decided.ModelOutput.Label)
	assert.Equal(t, "Income verified by phone.", decided.Explanation.Summary)
	assert.False(t, decided.IsOverride, "agreeing with an APPROVED recommendation is not an override")
}

func TestHumanDecide_DisagreementIsOverride(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Confidence = 0.60
	engine, db := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	decided, err := engine.HumanDecide(ctx, app.ID, "Denied", "Income could not be verified.")
	require.NoError(t, err)
	assert.True(t, decided.IsOverride)

	engine.Wait()

	stored, err := db.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.OverrideExplanation, "APPROVED")
	assert.Contains(t, stored.OverrideExplanation, "Denied")
}

func TestHumanDecide_RedecideCompleted(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, app.Status)

	decided, err := engine.HumanDecide(ctx, app.ID, "Denied", "Manual fraud review.")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, decided.Status)
	assert.Equal(t, "Denied", decided.ModelOutput.Label)
	assert.True(t, decided.IsOverride)
}

func TestHumanDecide_IdenticalDecisionIsIdempotent(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Confidence = 0.60
	engine, db := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	first, err := engine.HumanDecide(ctx, app.ID, "Denied", "Income could not be verified.")
	require.NoError(t, err)
	engine.Wait()

	before, err := db.RecentMemory(ctx, model.DomainLoan, 50)
	require.NoError(t, err)

	second, err := engine.HumanDecide(ctx, app.ID, "Denied", "Income could not be verified.")
	require.NoError(t, err)
	engine.Wait()

	after, err := db.RecentMemory(ctx, model.DomainLoan, 50)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "re-applying the same verdict must not add memory entries")

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.ModelOutput.Label, second.ModelOutput.Label)
	assert.Equal(t, first.Explanation.Summary, second.Explanation.Summary)
	assert.True(t, second.IsOverride)
}

func TestHumanDecide_Errors(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Err = errors.New("model unavailable")
	engine, _ := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	_, err = engine.HumanDecide(ctx, app.ID, "Approved", "")
	assert.ErrorIs(t, err, common.ErrNotReviewable, "no classifier result yet")

	_, err = engine.HumanDecide(ctx, app.ID, "escalate", "")
	assert.ErrorIs(t, err, common.ErrInvalidDecision)

	_, err = engine.HumanDecide(ctx, "no-such-id", "Approved", "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEditExplanation(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())
	ctx := context.Background()

	app, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)

	updated, err := engine.EditExplanation(ctx, app.ID, "Rewritten for the applicant letter.")
	require.NoError(t, err)
	assert.Equal(t, "Rewritten for the applicant letter.", updated.Explanation.Summary)
	assert.Equal(t, app.Status, updated.Status, "editing text never changes state")
}

func TestSubmitBatch_PartialFailure(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())
	ctx := context.Background()

	rows := []map[string]any{
		loanInput(720, 5000, 2000),
		{"applicant_name": "Missing Fields"},
		loanInput(500, 3000, 12000),
	}

	var progressed int
	result, err := engine.SubmitBatch(ctx, model.DomainLoan, rows, func(n int) { progressed = n })
	require.NoError(t, err)

	assert.Equal(t, 2, result.Submitted)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.DecisionIDs, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, 3, progressed)
}

func TestRecoverPending(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.Err = errors.New("model unavailable")
	engine, _ := newTestEngine(t, classifier, DefaultConfig())
	ctx := context.Background()

	first, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)
	second, err := engine.Submit(ctx, model.DomainJob, map[string]any{
		"applicant_name": "Grace Hopper", "skill_score": 88, "experience_years": 12,
	})
	require.NoError(t, err)

	classifier.Err = nil
	recovered, err := engine.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	engine.Wait()

	for _, id := range []string{first.ID, second.ID} {
		app, getErr := engine.Get(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, model.StatusCompleted, app.Status)
	}
}

func TestList_FilterValidation(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())

	_, err := engine.List(context.Background(), model.DomainLoan, service.ApplicationFilter("weird"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestStats_CountsByOutcome(t *testing.T) {
	engine, _ := newTestEngine(t, NewMockClassifier(), DefaultConfig())
	ctx := context.Background()

	_, err := engine.Submit(ctx, model.DomainLoan, loanInput(720, 5000, 2000))
	require.NoError(t, err)
	_, err = engine.Submit(ctx, model.DomainLoan, loanInput(500, 3000, 12000))
	require.NoError(t, err)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)

	var loan *service.DomainStats
	for i := range stats {
		if stats[i].Domain == model.DomainLoan {
			loan = &stats[i]
		}
	}
	require.NotNil(t, loan)
	assert.Equal(t, 2, loan.Total)
	assert.Equal(t, 1, loan.Approved)
	assert.Equal(t, 1, loan.Denied)
}
