package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaClient implements the Client interface against a local Ollama server.
type ollamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func newOllamaClient(cfg Config) (Client, error) {
	client := &ollamaClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}
	if client.baseURL == "" {
		client.baseURL = "http://localhost:11434"
	}
	if client.model == "" {
		client.model = "qwen2.5:3b"
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		// Local inference on modest hardware can be slow
		timeout = 120 * time.Second
	}
	client.httpClient = &http.Client{Timeout: timeout}

	return client, nil
}

// Generate sends a prompt to Ollama's generate endpoint in JSON mode.
func (c *ollamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading Ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding Ollama response: %w", err)
	}
	if parsed.Response == "" {
		return "", fmt.Errorf("Ollama returned an empty completion")
	}
	return parsed.Response, nil
}
