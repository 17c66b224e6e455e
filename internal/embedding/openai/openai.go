package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile names the file Save writes into the model folder.
const ManifestFile = "openai.yaml"

type manifest struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension,omitempty"`
}

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	client     *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 5
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: retries,
		backoff:    retryDelay,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Prepare is not required for remote embedding. We will lazily set dimension on first embed.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Fingerprint identifies the remote model serving the embeddings.
func (c *Client) Fingerprint() string { return c.baseURL + "|" + c.model }

// Save writes a manifest naming the remote model to dir.
func (c *Client) Save(dir string) error {
	data, err := yaml.Marshal(manifest{BaseURL: c.baseURL, Model: c.model, Dimension: c.dimension})
	if err != nil {
		return fmt.Errorf("encode openai manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// Load reads the manifest in dir. It fails when the folder was saved for a
// different remote model.
func (c *Client) Load(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return fmt.Errorf("read openai manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode openai manifest: %w", err)
	}
	if m.Model != c.model || m.BaseURL != c.baseURL {
		return fmt.Errorf("model folder holds %s at %s, configured %s at %s", m.Model, m.BaseURL, c.model, c.baseURL)
	}
	if c.dimension == 0 {
		c.dimension = m.Dimension
	}
	return nil
}

type reqBody struct {
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

// Embed returns an embedding vector for the given text.
// 429 and 5xx responses are retried with exponential backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("openai embeddings failed: %s", resp.Status)
			// Respect Retry-After if provided
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && attempt < c.maxRetries {
				if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
					return nil, err
				}
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
		}
		if err != nil {
			lastErr = err
			continue
		}
		v, err := decodeEmbedding(payload)
		if err != nil {
			lastErr = err
			continue
		}
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		return v, nil
	}
	return nil, lastErr
}

func decodeEmbedding(payload []byte) ([]float64, error) {
	// Try OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	// Fallback to Ollama-native shape: { "embedding": [...] }
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
