package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atelier-studio/atelier/pkg/schema"
)

const (
	defaultHTTPTimeout     = 120 * time.Second
	defaultMaxResponseBody = 32 * 1024 * 1024 // 32MB: responses carry base64 images
)

// RetryPolicy configures retry behavior for transient backend failures.
// Retry is the collaborator's responsibility; the engine itself never
// retries a node.
type RetryPolicy struct {
	Max      int           // max retry attempts (0 = no retries)
	Backoff  string        // none | constant | linear | exponential
	Delay    time.Duration // initial delay
	MaxDelay time.Duration // cap, 0 = uncapped
}

// HTTPGenerator calls a remote generative-image service over HTTP.
// The service receives the full Request as JSON and responds with
// {"image": "<data-url>", "status": "success"} or a non-2xx status whose
// body text becomes the node's error message.
type HTTPGenerator struct {
	endpoint string
	client   *http.Client
	retry    RetryPolicy
	logger   *slog.Logger
}

// HTTPOption customizes an HTTPGenerator.
type HTTPOption func(*HTTPGenerator)

// WithClient overrides the HTTP client (timeouts, transport).
func WithClient(c *http.Client) HTTPOption {
	return func(g *HTTPGenerator) { g.client = c }
}

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) HTTPOption {
	return func(g *HTTPGenerator) { g.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(g *HTTPGenerator) { g.logger = l }
}

// NewHTTP creates an HTTPGenerator for the given endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) *HTTPGenerator {
	g := &HTTPGenerator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// generateResponse is the backend's success payload.
type generateResponse struct {
	Image  string `json:"image"`
	Status string `json:"status"`
}

// errorResponse is the backend's failure payload (FastAPI-style detail).
type errorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// Generate posts the request to the backend, retrying transient failures
// per the configured policy.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (schema.Value, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeGeneration, "encode request: %s", err.Error()).WithCause(err)
	}

	var lastErr error
	for attempt := 0; attempt <= g.retry.Max; attempt++ {
		if attempt > 0 {
			delay := computeBackoff(g.retry, attempt-1)
			if err := waitForBackoff(ctx, delay); err != nil {
				return nil, err
			}
			g.logger.Warn("retrying generative call",
				slog.Int("attempt", attempt), slog.String("error", lastErr.Error()))
		}

		value, err := g.post(ctx, body)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (g *HTTPGenerator) post(ctx context.Context, body []byte) (schema.Value, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeGeneration, "build request: %s", err.Error()).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the service's own message verbatim when available.
		var fail errorResponse
		if jsonErr := json.Unmarshal(raw, &fail); jsonErr == nil {
			if fail.Detail != "" {
				return nil, &httpStatusError{status: resp.StatusCode, message: fail.Detail}
			}
			if fail.Message != "" {
				return nil, &httpStatusError{status: resp.StatusCode, message: fail.Message}
			}
		}
		return nil, &httpStatusError{status: resp.StatusCode, message: strings.TrimSpace(string(raw))}
	}

	var ok generateResponse
	if err := json.Unmarshal(raw, &ok); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeGeneration, "decode response: %s", err.Error()).WithCause(err)
	}
	if ok.Image == "" {
		return nil, schema.NewError(schema.ErrCodeGeneration, "backend returned no image")
	}
	return ok.Image, nil
}

// httpStatusError keeps the backend's message as the error text while
// retaining the status code for retry classification.
type httpStatusError struct {
	status  int
	message string
}

func (e *httpStatusError) Error() string { return e.message }

// isRetryable classifies whether a failed call should be retried.
// Server-side and transport failures are retryable; client errors and
// context cancellation are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Cancellation means the caller gave up; deadline means the request
	// itself timed out and may succeed on retry.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500
	}

	// Our own typed errors are encode/decode defects, not transient.
	var aerr *schema.AtelierError
	if errors.As(err, &aerr) {
		return false
	}

	// Transport-level failures (connection refused, resets) land here.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"unsupported protocol", "no such host"} {
		if strings.Contains(msg, p) {
			return false
		}
	}
	return true
}

// computeBackoff calculates the delay before the next retry attempt.
func computeBackoff(policy RetryPolicy, attempt int) time.Duration {
	if policy.Delay <= 0 {
		return 0
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		multiplier := time.Duration(1)
		for i := 0; i < attempt; i++ {
			multiplier *= 2
		}
		delay = policy.Delay * multiplier
	case "linear":
		delay = policy.Delay * time.Duration(attempt+1)
	default: // "constant", "none" or empty
		delay = policy.Delay
	}

	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

// waitForBackoff sleeps for the computed delay or returns early if the
// context is cancelled.
func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
