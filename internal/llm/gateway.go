package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/common/telemetry"
)

// ErrorKind classifies a provider failure for retry and HTTP mapping.
type ErrorKind string

const (
	// KindOverloaded marks a transient provider-side overload (HTTP 529 or an
	// "overloaded" message). Retried with exponential backoff.
	KindOverloaded ErrorKind = "overloaded"
	// KindRateLimited marks HTTP 429. Retried with exponential backoff.
	KindRateLimited ErrorKind = "rate_limited"
	// KindOther marks every remaining failure. Never retried.
	KindOther ErrorKind = "other"
)

// GatewayError wraps a provider failure with its classification.
type GatewayError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gateway failure (%s)", e.Kind)
	}
	return fmt.Sprintf("gateway failure (%s): %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether the gateway may re-attempt the request.
func (e *GatewayError) Retryable() bool {
	return e.Kind == KindOverloaded || e.Kind == KindRateLimited
}

// RetryAfter is the delay hint surfaced to HTTP callers, in seconds.
func (e *GatewayError) RetryAfter() int {
	switch e.Kind {
	case KindOverloaded:
		return 30
	case KindRateLimited:
		return 60
	default:
		return 0
	}
}

// Request is one completion request: an optional system framing plus the
// assembled user prompt.
type Request struct {
	System string
	Prompt string
}

// Gateway sends prompts to the provider and retries transient failures with
// per-request exponential backoff. The backoff sleeps on a timer selected
// against the request context, so a waiting request never blocks others.
type Gateway struct {
	provider    Provider
	maxAttempts int
	baseDelay   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(provider Provider, maxAttempts int, baseDelay time.Duration) *Gateway {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &Gateway{
		provider:    provider,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepContext,
	}
}

// Complete runs the request, retrying Overloaded and RateLimited failures up
// to the attempt budget. The last error is returned after exhaustion; Other
// failures return immediately.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	logger := common.Logger()
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	var lastErr *GatewayError
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		raw, err := g.provider.Chat(ctx, messages)
		if err == nil {
			telemetry.RecordGatewayRequest(attempt - 1)
			return raw, nil
		}
		lastErr = Classify(err)
		if !lastErr.Retryable() {
			logger.Error("gateway: completion failed", "kind", string(lastErr.Kind), "error", err)
			break
		}
		if attempt == g.maxAttempts {
			logger.Error("gateway: retry budget exhausted", "kind", string(lastErr.Kind), "attempts", attempt)
			break
		}
		delay := g.baseDelay * (1 << uint(attempt-1))
		logger.Warn("gateway: transient failure, backing off",
			"kind", string(lastErr.Kind), "attempt", attempt, "max_attempts", g.maxAttempts, "delay", delay)
		if err := g.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	telemetry.RecordGatewayFailure(string(lastErr.Kind))
	return "", lastErr
}

// Word-anchored so request ids and addresses that merely contain the digits
// do not count as a status code.
var (
	overloadedCode  = regexp.MustCompile(`\b529\b`)
	rateLimitedCode = regexp.MustCompile(`\b429\b`)
)

// Classify maps a provider error onto the gateway taxonomy. The provider
// status code wins when present, but an overload can also arrive with a
// generic status (the upstream reports some overloads as 500), so the message
// is consulted as well; untyped errors are classified by message alone.
func Classify(err error) *GatewayError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 529:
			return &GatewayError{Kind: KindOverloaded, Status: apiErr.StatusCode, Err: err}
		case apiErr.StatusCode == 429:
			return &GatewayError{Kind: KindRateLimited, Status: apiErr.StatusCode, Err: err}
		case strings.Contains(strings.ToLower(apiErr.Message), "overloaded"):
			return &GatewayError{Kind: KindOverloaded, Status: apiErr.StatusCode, Err: err}
		default:
			return &GatewayError{Kind: KindOther, Status: apiErr.StatusCode, Err: err}
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "overloaded") || overloadedCode.MatchString(msg):
		return &GatewayError{Kind: KindOverloaded, Status: 529, Err: err}
	case rateLimitedCode.MatchString(msg) || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return &GatewayError{Kind: KindRateLimited, Status: 429, Err: err}
	default:
		return &GatewayError{Kind: KindOther, Err: err}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
