// Package llm is the chat-completion client behind arbitration and the
// web-search price fallback. Prompt construction and answer parsing
// belong to the callers; this package only moves text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"snaplist/internal/pricing"
)

// Config holds connection settings for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for the given key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// Client is a minimal chat-completion client with local pacing and a
// small retry budget for throttling.
type Client struct {
	cfg         Config
	hc          *http.Client
	log         zerolog.Logger
	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a completion client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig(cfg.APIKey).BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig(cfg.APIKey).Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig(cfg.APIKey).Timeout
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		log: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const arbitrateSystemPrompt = "You are a pricing analyst for secondhand marketplace listings. " +
	"You answer with strict JSON and nothing else."

// Arbitrate runs a single completion over the arbiter's prompt.
func (c *Client) Arbitrate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, arbitrateSystemPrompt, prompt)
}

const webPriceSystemPrompt = "You search the web for current retail prices. " +
	"Answer with strict JSON: {\"price\": 0.00, \"confidence\": \"high|medium|low\", \"url\": \"...\"}."

// FindPrice asks for a single best-effort retail price with a
// confidence label. This backs the lowest-trust collection tier.
func (c *Client) FindPrice(ctx context.Context, title, brand string) (pricing.WebPrice, error) {
	prompt := "Find the typical single-unit retail price for: " + title
	if brand != "" {
		prompt += " by " + brand
	}
	raw, err := c.complete(ctx, webPriceSystemPrompt, prompt)
	if err != nil {
		return pricing.WebPrice{}, err
	}

	var parsed struct {
		Price      float64 `json:"price"`
		Confidence string  `json:"confidence"`
		URL        string  `json:"url"`
	}
	text := strings.TrimSpace(raw)
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		text = text[i : j+1]
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return pricing.WebPrice{}, pricing.NewSignalError("web_price", pricing.ReasonNoData, err)
	}
	if parsed.Price <= 0 {
		return pricing.WebPrice{}, pricing.NewSignalError("web_price", pricing.ReasonNoData, fmt.Errorf("no price in answer"))
	}
	return pricing.WebPrice{
		PriceCents: int64(math.Round(parsed.Price * 100)),
		Confidence: strings.ToLower(parsed.Confidence),
		SourceURL:  parsed.URL,
	}, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("llm: API key not configured")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	// Local pacing between requests.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   1024,
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("llm: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("llm: parse response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("llm: api error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("llm: no completion returned")
		}
		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("llm: retries exhausted: %w", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
