package workflow

import (
	"context"

	"github.com/verdictlabs/verdict/internal/model"
)

// Classifier defines the contract for the external decision collaborator.
type Classifier interface {
	Classify(ctx context.Context, domain model.Domain, features map[string]any, policies []model.Policy, history []model.MemoryEntry) (*model.AIResult, error)
	ExplainOverride(ctx context.Context, domain model.Domain, features map[string]any, aiStatus, humanStatus, comment string) (string, error)
}
