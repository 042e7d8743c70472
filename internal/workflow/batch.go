package workflow

import (
	"context"
	"log/slog"

	"github.com/verdictlabs/verdict/internal/model"
)

// RowError records why a single batch row was rejected.
type RowError struct {
	Error string `json:"error"`
	Row   int    `json:"row"`
}

// BatchResult summarizes a batch submission. Failed rows never abort the
// batch; each is reported individually.
type BatchResult struct {
	DecisionIDs []string   `json:"decision_ids"`
	Errors      []RowError `json:"errors,omitempty"`
	Submitted   int        `json:"submitted"`
	Failed      int        `json:"failed"`
}

// SubmitBatch submits each row as its own application. The progress callback,
// if non-nil, is invoked after every row with the number processed so far.
func (e *Engine) SubmitBatch(ctx context.Context, domain model.Domain, rows []map[string]any, progress func(processed int)) (*BatchResult, error) {
	result := &BatchResult{}

	for i, row := range rows {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		app, err := e.Submit(ctx, domain, row)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: i + 1, Error: err.Error()})
			slog.Warn("Batch row rejected", "domain", domain, "row", i+1, "error", err)
		} else {
			result.Submitted++
			result.DecisionIDs = append(result.DecisionIDs, app.ID)
		}

		if progress != nil {
			progress(i + 1)
		}
	}

	slog.Info("Batch submission finished",
		"domain", domain,
		"submitted", result.Submitted,
		"failed", result.Failed)

	return result, nil
}
