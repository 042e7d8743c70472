package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
)

// CreateApplication persists a newly submitted application record.
func (s *SQLiteStorage) CreateApplication(ctx context.Context, app *model.Application) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateApplication(app); err != nil {
		return err
	}

	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	app.UpdatedAt = app.CreatedAt

	features, err := json.Marshal(app.InputFeatures)
	if err != nil {
		return fmt.Errorf("failed to encode input features: %w", err)
	}

	var aiResult any
	if app.AIResult != nil {
		encoded, encodeErr := json.Marshal(app.AIResult)
		if encodeErr != nil {
			return fmt.Errorf("failed to encode ai result: %w", encodeErr)
		}
		aiResult = string(encoded)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, domain, applicant_name, input_features, status,
			label, confidence, ai_result, explanation, override_explanation,
			is_override, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		app.ID,
		string(app.Domain),
		app.ApplicantName,
		string(features),
		string(app.Status),
		app.ModelOutput.Label,
		app.ModelOutput.Confidence,
		aiResult,
		app.Explanation.Summary,
		app.OverrideExplanation,
		app.IsOverride,
		app.LastError,
		app.CreatedAt,
		app.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: application %s", common.ErrDuplicateEntry, app.ID)
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetApplication fetches a single record by decision id.
func (s *SQLiteStorage) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, domain, applicant_name, input_features, status,
		       label, confidence, ai_result, explanation, override_explanation,
		       is_override, last_error, created_at, updated_at
		FROM applications
		WHERE id = ?
	`, id)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: application %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

// UpdateApplication applies a partial update to a record and returns the
// updated row. Nil fields in the update are left untouched.
func (s *SQLiteStorage) UpdateApplication(ctx context.Context, id string, update service.ApplicationUpdate) (*model.Application, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	setClauses := make([]string, 0, 8)
	args := make([]any, 0, 9)

	if update.Status != nil {
		setClauses = append(setClauses, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.ModelOutput != nil {
		setClauses = append(setClauses, "label = ?", "confidence = ?")
		args = append(args, update.ModelOutput.Label, update.ModelOutput.Confidence)
	}
	if update.AIResult != nil {
		encoded, err := json.Marshal(update.AIResult)
		if err != nil {
			return nil, fmt.Errorf("failed to encode ai result: %w", err)
		}
		setClauses = append(setClauses, "ai_result = ?")
		args = append(args, string(encoded))
	}
	if update.ExplanationSummary != nil {
		setClauses = append(setClauses, "explanation = ?")
		args = append(args, *update.ExplanationSummary)
	}
	if update.OverrideExplanation != nil {
		setClauses = append(setClauses, "override_explanation = ?")
		args = append(args, *update.OverrideExplanation)
	}
	if update.IsOverride != nil {
		setClauses = append(setClauses, "is_override = ?")
		args = append(args, *update.IsOverride)
	}
	if update.LastError != nil {
		setClauses = append(setClauses, "last_error = ?")
		args = append(args, *update.LastError)
	}

	if len(setClauses) == 0 {
		return s.GetApplication(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE applications SET %s WHERE id = ?", strings.Join(setClauses, ", ")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: application %s", common.ErrNotFound, id)
	}

	return s.GetApplication(ctx, id)
}

// ListApplications returns records for a domain (all domains when domain is
// empty), newest first, narrowed by the given filter. Label bucketing goes
// through model.OutcomeForLabel so filters and stats can never diverge.
func (s *SQLiteStorage) ListApplications(ctx context.Context, domain model.Domain, filter service.ApplicationFilter) ([]model.Application, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if domain != "" {
		if err := validateDomain(domain); err != nil {
			return nil, err
		}
	}
	if filter == "" {
		filter = service.FilterAll
	}
	if !filter.Valid() {
		return nil, fmt.Errorf("unknown filter %q", filter)
	}

	query := `
		SELECT id, domain, applicant_name, input_features, status,
		       label, confidence, ai_result, explanation, override_explanation,
		       is_override, last_error, created_at, updated_at
		FROM applications`
	args := []any{}
	if domain != "" {
		query += " WHERE domain = ?"
		args = append(args, string(domain))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []model.Application
	for rows.Next() {
		app, scanErr := scanApplication(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan application: %w", scanErr)
		}
		if matchesFilter(app, filter) {
			apps = append(apps, *app)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}

	return apps, nil
}

// DomainStats aggregates outcome counts per domain for the dashboard.
func (s *SQLiteStorage) DomainStats(ctx context.Context) ([]service.DomainStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := make([]service.DomainStats, 0, len(model.Domains))
	for _, domain := range model.Domains {
		apps, err := s.ListApplications(ctx, domain, service.FilterAll)
		if err != nil {
			return nil, err
		}

		tile := service.DomainStats{Domain: domain, Total: len(apps)}
		for i := range apps {
			switch model.OutcomeForLabel(apps[i].ModelOutput.Label) {
			case model.OutcomePending:
				tile.Pending++
			case model.OutcomePositive:
				tile.Approved++
			case model.OutcomeNegative:
				tile.Denied++
			}
		}
		stats = append(stats, tile)
	}

	return stats, nil
}

func matchesFilter(app *model.Application, filter service.ApplicationFilter) bool {
	switch filter {
	case service.FilterAll:
		return true
	case service.FilterPending:
		return model.OutcomeForLabel(app.ModelOutput.Label) == model.OutcomePending
	case service.FilterApproved:
		return model.OutcomeForLabel(app.ModelOutput.Label) == model.OutcomePositive
	case service.FilterDenied:
		return model.OutcomeForLabel(app.ModelOutput.Label) == model.OutcomeNegative
	default:
		return false
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		app           model.Application
		domain        string
		status        string
		applicantName sql.NullString
		features      string
		aiResult      sql.NullString
	)

	err := row.Scan(
		&app.ID,
		&domain,
		&applicantName,
		&features,
		&status,
		&app.ModelOutput.Label,
		&app.ModelOutput.Confidence,
		&aiResult,
		&app.Explanation.Summary,
		&app.OverrideExplanation,
		&app.IsOverride,
		&app.LastError,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Domain = model.Domain(domain)
	app.Status = model.Status(status)
	app.ApplicantName = applicantName.String

	if err := json.Unmarshal([]byte(features), &app.InputFeatures); err != nil {
		return nil, fmt.Errorf("failed to decode input features: %w", err)
	}

	if aiResult.Valid && aiResult.String != "" {
		var result model.AIResult
		if err := json.Unmarshal([]byte(aiResult.String), &result); err != nil {
			return nil, fmt.Errorf("failed to decode ai result: %w", err)
		}
		app.AIResult = &result
	}

	return &app, nil
}
