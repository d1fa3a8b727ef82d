// Package gemini calls the generateContent endpoint of the Generative Language API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"soulverse/internal/common/metrics"
	"soulverse/internal/common/observability"
	"soulverse/internal/prompt"
)

// ErrTimeout is returned when an attempt exceeds the per-attempt timeout.
var ErrTimeout = errors.New("gemini request timed out")

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini %d: %s", e.StatusCode, e.Body)
}

// Attempt results, used as metric labels.
const (
	ResultSuccess  = "success"
	ResultTimeout  = "timeout"
	ResultStatus   = "status"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

// Logger is the logging subset the client needs.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Poster sends a JSON body and returns the status code and raw response.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload interface{}) (int, []byte, error)
}

// GenerationConfig is sent verbatim as generationConfig.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// Config holds everything the client needs for one model.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Generation GenerationConfig
}

type Client struct {
	config Config
	poster Poster
	logger Logger
	obs    *observability.Observability
}

// NewClient returns a client. MaxRetries above one is treated as one.
func NewClient(cfg Config, poster Poster, log Logger, obs *observability.Observability) *Client {
	if cfg.MaxRetries > 1 {
		cfg.MaxRetries = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{config: cfg, poster: poster, logger: log, obs: obs}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

// newRequest builds the request body. The stable v1 surface receives the whole prompt as one
// user turn; later versions get the persona as a system instruction.
func (c *Client) newRequest(p prompt.Prompt) generateRequest {
	req := generateRequest{GenerationConfig: c.config.Generation}
	if c.config.APIVersion == "v1" || p.System == "" {
		req.Contents = []content{{Role: "user", Parts: []part{{Text: p.Text()}}}}
		return req
	}
	req.SystemInstruction = &content{Parts: []part{{Text: p.System}}}
	req.Contents = []content{{Role: "user", Parts: []part{{Text: p.User}}}}
	return req
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		c.config.APIVersion,
		url.PathEscape(c.config.Model),
		url.QueryEscape(c.config.APIKey),
	)
}

// Generate sends p and returns the model text. A failed attempt is retried at most once;
// the last error is returned when both fail.
func (c *Client) Generate(ctx context.Context, p prompt.Prompt) (string, error) {
	ctx, span := c.obs.Tracer().Start(ctx, observability.SpanGeminiGenerate,
		attribute.String(observability.AttrModel, c.config.Model))
	start := time.Now()

	body := c.newRequest(p)
	var lastErr error
	attempts := 1 + c.config.MaxRetries

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && c.config.RetryDelay > 0 {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				lastErr = fmt.Errorf("%w: %v", lastErr, ctx.Err())
				c.finish(ctx, span, start, ResultCanceled, lastErr)
				return "", lastErr
			}
		}

		text, result, err := c.attempt(ctx, body)
		metrics.UpstreamAttempts.WithLabelValues(result).Inc()
		span.SetAttributes(attribute.Int(observability.AttrAttempt, attempt))

		if err == nil {
			c.finish(ctx, span, start, result, nil)
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			c.logger.Warn("Model call failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"model":   c.config.Model,
				"error":   err.Error(),
			})
		}
	}

	result := ResultError
	var statusErr *StatusError
	switch {
	case errors.Is(lastErr, ErrTimeout):
		result = ResultTimeout
	case errors.As(lastErr, &statusErr):
		result = ResultStatus
		span.SetAttributes(attribute.Int(observability.AttrUpstreamStatus, statusErr.StatusCode))
	case ctx.Err() != nil:
		result = ResultCanceled
	}
	c.finish(ctx, span, start, result, lastErr)
	return "", lastErr
}

func (c *Client) finish(ctx context.Context, span trace.Span, start time.Time, result string, err error) {
	c.obs.RecordUpstreamDuration(ctx, time.Since(start), result)
	observability.EndSpan(span, err)
}

// attempt performs one bounded request.
func (c *Client) attempt(ctx context.Context, body generateRequest) (string, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	status, raw, err := c.poster.PostJSON(attemptCtx, c.endpoint(), body)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return "", ResultCanceled, fmt.Errorf("gemini request aborted: %w", ctx.Err())
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return "", ResultTimeout, fmt.Errorf("%w after %s", ErrTimeout, c.config.Timeout)
		default:
			return "", ResultError, fmt.Errorf("gemini request failed: %s", redact(err.Error(), c.config.APIKey))
		}
	}

	if status < 200 || status > 299 {
		c.logger.Debug("Model API error body", map[string]interface{}{
			"status": status,
			"body":   string(raw),
		})
		return "", ResultStatus, &StatusError{StatusCode: status, Body: string(raw)}
	}

	return ExtractText(raw), ResultSuccess, nil
}

// ExtractText reads candidates[0].content.parts[0].text. A body that is not JSON is returned
// as is; a JSON body without text yields "{}".
func ExtractText(raw []byte) string {
	if !json.Valid(raw) {
		return string(raw)
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}

	text, _ := dig(data, "candidates", 0, "content", "parts", 0, "text").(string)
	if text == "" {
		return "{}"
	}
	return text
}

func dig(v interface{}, path ...interface{}) interface{} {
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := v.(map[string]interface{})
			if !ok {
				return nil
			}
			v = m[key]
		case int:
			list, ok := v.([]interface{})
			if !ok || key >= len(list) {
				return nil
			}
			v = list[key]
		}
	}
	return v
}

// redact hides the credential that net/http echoes back in URL errors.
func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(secret), "REDACTED")
	return strings.ReplaceAll(msg, secret, "REDACTED")
}
