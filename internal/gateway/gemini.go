package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatbi/internal/logging"
)

// GeminiConfig configures the Gemini-backed gateway.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	RouterModel  string // fast model: classification, per-angle narration
	PlannerModel string // strong model: code synthesis, final insight
	Timeout      time.Duration
	RetryBase    time.Duration
	MaxAttempts  int
}

// DefaultGeminiConfig returns the defaults used by the original service:
// flash for routing and narration, pro for planning, 5s retry base with
// three attempts against the v1beta endpoint.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:       apiKey,
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
		RouterModel:  "gemini-2.0-flash",
		PlannerModel: "gemini-3-pro-preview",
		Timeout:      2 * time.Minute,
		RetryBase:    5 * time.Second,
		MaxAttempts:  3,
	}
}

// GeminiClient implements Client against the Gemini REST API.
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
	retry      retryPolicy

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a gateway client with the given config.
// Zero-value fields fall back to DefaultGeminiConfig.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	def := DefaultGeminiConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RouterModel == "" {
		cfg.RouterModel = def.RouterModel
	}
	if cfg.PlannerModel == "" {
		cfg.PlannerModel = def.PlannerModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      newRetryPolicy(cfg.RetryBase, cfg.MaxAttempts),
	}
}

// Classify runs a classification prompt on the fast model with JSON
// output enforced.
func (c *GeminiClient) Classify(ctx context.Context, prompt string) (string, error) {
	return c.retry.do(ctx, "classify", func() (string, error) {
		return c.generateContent(ctx, c.cfg.RouterModel, prompt, true)
	})
}

// Generate runs a synthesis prompt on the strong model.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	return c.retry.do(ctx, "generate", func() (string, error) {
		return c.generateContent(ctx, c.cfg.PlannerModel, prompt, jsonOutput)
	})
}

// Summarize runs a narration prompt on the fast model.
func (c *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	return c.retry.do(ctx, "summarize", func() (string, error) {
		return c.generateContent(ctx, c.cfg.RouterModel, text, false)
	})
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// generateContent performs one generateContent call. Rate limiting is
// classified into *RateLimitError so the retry policy can distinguish it.
func (c *GeminiClient) generateContent(ctx context.Context, model, prompt string, jsonOutput bool) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	// Minimum spacing between requests.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	start := time.Now()
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{Temperature: 1.0},
	}
	if jsonOutput {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(body), "RESOURCE_EXHAUSTED") {
		return "", &RateLimitError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	var result strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}
	out := strings.TrimSpace(result.String())
	logging.Gateway("%s completed in %v response_len=%d json=%v", model, time.Since(start), len(out), jsonOutput)
	return out, nil
}
