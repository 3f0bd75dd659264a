package vision

import (
	"context"
	"errors"
	"strings"

	"github.com/local/rollscan/internal/ai"
)

// ClassifyError labels an attempt failure for logs and metrics. Every
// class is retried while budget remains.
func ClassifyError(err error) string {
	if err == nil {
		return "success"
	}
	if ai.IsRateLimited(err) {
		return "rate_limited"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	var httpErr *ai.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return "transient"
		}
		return "fatal"
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "eof") {
		return "transient"
	}
	if errors.Is(err, ai.ErrEmptyResponse) {
		return "empty"
	}
	return "fatal"
}

// ParseError wraps a response that could not be turned into records.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse response: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }
