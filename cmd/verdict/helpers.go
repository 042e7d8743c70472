package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/verdictlabs/verdict/internal/config"
	"github.com/verdictlabs/verdict/internal/llm"
	"github.com/verdictlabs/verdict/internal/service"
	"github.com/verdictlabs/verdict/internal/storage"
	"github.com/verdictlabs/verdict/internal/workflow"
)

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/verdict/verdict.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initClassifier builds the configured LLM classifier.
func initClassifier() (*llm.Classifier, error) {
	cfg := llm.Config{
		Provider:    viper.GetString("llm.provider"),
		BaseURL:     viper.GetString("llm.base_url"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}
	if timeout := viper.GetDuration("llm.timeout"); timeout > 0 {
		cfg.CallTimeout = timeout
	}

	return llm.NewClassifier(cfg, slog.Default())
}

// initEngine wires storage and classifier into the workflow engine.
func initEngine(ctx context.Context) (*workflow.Engine, service.Storage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	classifier, err := initClassifier()
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cfg := workflow.DefaultConfig()
	if threshold := viper.GetFloat64("workflow.auto_complete_confidence"); threshold > 0 {
		cfg.AutoCompleteConfidence = threshold
	}
	if attempts := viper.GetInt("workflow.retry_attempts"); attempts > 0 {
		cfg.Retry = service.RetryOptions{
			MaxAttempts:  attempts,
			InitialDelay: time.Second,
			Multiplier:   2.0,
		}
	}

	return workflow.NewWithConfig(store, classifier, cfg), store, nil
}
