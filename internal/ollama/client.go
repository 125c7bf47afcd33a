package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pbaille/imgclf/internal/config"
)

// StatusError is returned when the server answers with anything but 200
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error %d", e.Code)
}

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
	Format string   `json:"format"`
}

// GenerateResponse is the envelope returned by /api/generate.
// Response is nil when the field is absent. Only Response is required,
// the rest is informational and kept loosely typed.
type GenerateResponse struct {
	Model         string  `json:"model"`
	CreatedAt     string  `json:"created_at"`
	Response      *string `json:"response"`
	Done          bool    `json:"done"`
	TotalDuration float64 `json:"total_duration"`
	EvalCount     float64 `json:"eval_count"`

	// Raw is the body as received
	Raw []byte `json:"-"`
}

// Client talks to an Ollama-compatible generate endpoint
type Client struct {
	endpoint string
	prompt   string
	http     *http.Client
	logger   *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from cfg
func New(cfg config.OllamaConfig, opts ...Option) *Client {
	c := &Client{
		endpoint: cfg.Endpoint,
		prompt:   cfg.Prompt,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends the image at imagePath to model and returns the decoded envelope
func (c *Client) Generate(ctx context.Context, imagePath, model string) (*GenerateResponse, error) {
	image, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}

	reqBody := GenerateRequest{
		Model:  model,
		Prompt: c.prompt,
		Images: []string{image},
		Stream: false,
		Format: "json",
	}

	jsonBody, err := sonic.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("generate",
		"image", imagePath,
		"model", model,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var out GenerateResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	out.Raw = body

	return &out, nil
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
