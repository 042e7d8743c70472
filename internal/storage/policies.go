package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/model"
)

// ListPolicies returns the policies for one domain in insertion order.
// Results are served from a short-lived cache since the classifier reads
// policies before every call.
func (s *SQLiteStorage) ListPolicies(ctx context.Context, domain model.Domain) ([]model.Policy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePolicyDomain(domain); err != nil {
		return nil, err
	}

	if policies, ok := s.cachedPolicies(domain); ok {
		return policies, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, text, created_at
		FROM policies
		WHERE domain = ?
		ORDER BY created_at ASC, id ASC
	`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	policies := []model.Policy{}
	for rows.Next() {
		var (
			p      model.Policy
			scoped string
		)
		if err := rows.Scan(&p.ID, &scoped, &p.Text, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.Domain = model.Domain(scoped)
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}

	s.storePolicies(domain, policies)
	return policies, nil
}

// ListAllPolicies returns every policy grouped by domain, including empty
// domains so the dashboard can render all scopes.
func (s *SQLiteStorage) ListAllPolicies(ctx context.Context) (map[model.Domain][]model.Policy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	grouped := make(map[model.Domain][]model.Policy, len(model.PolicyDomains))
	for _, domain := range model.PolicyDomains {
		policies, err := s.ListPolicies(ctx, domain)
		if err != nil {
			return nil, err
		}
		grouped[domain] = policies
	}

	return grouped, nil
}

// AddPolicy creates a policy under the given scope and returns it.
func (s *SQLiteStorage) AddPolicy(ctx context.Context, domain model.Domain, text string) (*model.Policy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePolicyDomain(domain); err != nil {
		return nil, err
	}
	if err := validateString(text, "text"); err != nil {
		return nil, err
	}

	policy := &model.Policy{
		ID:        uuid.NewString()[:8],
		Domain:    domain,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (id, domain, text, created_at)
		VALUES (?, ?, ?, ?)
	`, policy.ID, string(policy.Domain), policy.Text, policy.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add policy: %w", err)
	}

	s.invalidatePolicyCache()
	return policy, nil
}

// DeletePolicy removes a policy. Deleting an unknown id returns ErrNotFound.
func (s *SQLiteStorage) DeletePolicy(ctx context.Context, domain model.Domain, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePolicyDomain(domain); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM policies WHERE domain = ? AND id = ?
	`, string(domain), id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: policy %s/%s", common.ErrNotFound, domain, id)
	}

	s.invalidatePolicyCache()
	return nil
}
