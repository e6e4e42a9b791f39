// Package gemini implements llm.Model on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/household-docs/internal/llm"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey      string // if empty, falls back to env GEMINI_API_KEY
	Model       string
	Temperature float32
}

// Client holds one genai client for the life of the process.
type Client struct {
	cfg    Config
	client *genai.Client
	log    *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create genai client: %w", err)
	}
	return &Client{cfg: cfg, client: client, log: logger}, nil
}

func (c *Client) Name() string { return "gemini:" + c.cfg.Model }

// Generate implements llm.Model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	temp := c.cfg.Temperature
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		return "", asModelError(err)
	}
	// An empty reply goes back as-is; decoding rejects it and the next
	// attempt gets the correcting prompt.
	text := strings.TrimSpace(resp.Text())
	c.log.Debug("llm.gemini.ok",
		"model", c.cfg.Model,
		"content_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// asModelError maps genai status errors onto llm.APIError so the
// structurer can tell a bad key from an overloaded backend.
func asModelError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{Provider: "gemini", Status: apiErr.Code, Body: llm.TruncateRunes(apiErr.Message, 512)}
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}
