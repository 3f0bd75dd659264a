package ai

import (
    "context"
    "errors"
    "fmt"
)

// Request is one vision-model call for a page image.
type Request struct {
    JobID        string
    Page         int
    Model        string
    SystemPrompt string
    Prompt       string
    Image        []byte // raw image bytes
    ImageMIME    string // image/jpeg
    // Schema is a JSON schema the response must follow; nil for free text.
    Schema map[string]any
}

type Response struct {
    Text      string
    TokensIn  int
    TokensOut int
}

// Client interface for providers like Gemini, OpenAI.
type Client interface {
    Name() string
    Do(ctx context.Context, req Request) (Response, error)
}

var (
    ErrRateLimited   = errors.New("rate_limited")
    ErrEmptyResponse = errors.New("empty_response")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// HTTPError represents an HTTP status error from a provider or endpoint.
type HTTPError struct {
    StatusCode int
    Body       string
    Provider   string
}

func (e *HTTPError) Error() string {
    return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

// Unwrap maps 429 onto ErrRateLimited.
func (e *HTTPError) Unwrap() error {
    if e.StatusCode == 429 { return ErrRateLimited }
    return nil
}
