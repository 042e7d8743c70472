// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/verdictlabs/verdict/internal/model"
)

// ApplicationFilter selects which applications a listing returns.
type ApplicationFilter string

// Listing filters. Approved and Denied match against the positive label
// vocabulary via model.OutcomeForLabel.
const (
	FilterAll      ApplicationFilter = "all"
	FilterPending  ApplicationFilter = "pending"
	FilterApproved ApplicationFilter = "approved"
	FilterDenied   ApplicationFilter = "denied"
)

// Valid reports whether f is a known filter.
func (f ApplicationFilter) Valid() bool {
	switch f {
	case FilterAll, FilterPending, FilterApproved, FilterDenied:
		return true
	default:
		return false
	}
}

// ApplicationUpdate carries the mutable fields of an application record.
// Nil fields are left untouched by Storage.UpdateApplication.
type ApplicationUpdate struct {
	Status              *model.Status
	ModelOutput         *model.ModelOutput
	AIResult            *model.AIResult
	ExplanationSummary  *string
	OverrideExplanation *string
	IsOverride          *bool
	LastError           *string
}

// DomainStats aggregates listing counts for one domain's dashboard tile.
type DomainStats struct {
	Domain   model.Domain `json:"domain"`
	Total    int          `json:"total"`
	Pending  int          `json:"pending"`
	Approved int          `json:"approved"`
	Denied   int          `json:"denied"`
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Application operations
	CreateApplication(ctx context.Context, app *model.Application) error
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	UpdateApplication(ctx context.Context, id string, update ApplicationUpdate) (*model.Application, error)
	ListApplications(ctx context.Context, domain model.Domain, filter ApplicationFilter) ([]model.Application, error)
	DomainStats(ctx context.Context) ([]DomainStats, error)

	// Policy operations
	ListPolicies(ctx context.Context, domain model.Domain) ([]model.Policy, error)
	ListAllPolicies(ctx context.Context) (map[model.Domain][]model.Policy, error)
	AddPolicy(ctx context.Context, domain model.Domain, text string) (*model.Policy, error)
	DeletePolicy(ctx context.Context, domain model.Domain, id string) error

	// Decision memory operations
	AddMemory(ctx context.Context, entry *model.MemoryEntry) error
	RecentMemory(ctx context.Context, domain model.Domain, limit int) ([]model.MemoryEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
