// Package poller implements a client that submits applications to a running
// server and polls them until they reach a terminal state.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verdictlabs/verdict/internal/model"
)

// Client is a thin HTTP client for the decision API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit posts one application and returns the created record.
func (c *Client) Submit(ctx context.Context, domain model.Domain, input map[string]any) (*model.Application, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode application: %w", err)
	}

	endpoint := fmt.Sprintf("%s/applications?domain=%s", c.baseURL, url.QueryEscape(string(domain)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doApplication(req, http.StatusCreated)
}

// Get fetches one application by decision id.
func (c *Client) Get(ctx context.Context, id string) (*model.Application, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/applications/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.doApplication(req, http.StatusOK)
}

func (c *Client) doApplication(req *http.Request, wantStatus int) (*model.Application, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var app model.Application
	if err := json.NewDecoder(resp.Body).Decode(&app); err != nil {
		return nil, fmt.Errorf("failed to decode application: %w", err)
	}
	return &app, nil
}

// Getter fetches the current state of one application.
type Getter interface {
	Get(ctx context.Context, id string) (*model.Application, error)
}

// Poller repeatedly fetches an application until it has been decided.
type Poller struct {
	client   Getter
	interval time.Duration
}

// New creates a poller with the given fixed polling interval.
func New(client Getter, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{client: client, interval: interval}
}

// Wait polls until the application carries a verdict label — completed or
// parked in human review — or ctx expires. Transient fetch errors are logged
// and the poll continues; the caller bounds the total wait through ctx.
func (p *Poller) Wait(ctx context.Context, id string) (*model.Application, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		app, err := p.client.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Poll attempt failed", "decision_id", id, "error", err)
		} else if app.Decided() {
			return app, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
