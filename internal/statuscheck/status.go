package statuscheck

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os/exec"
    "strings"
    "time"
)

// Pinger models a dependency that can report reachability.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Checker aggregates health checks for external dependencies.
type Checker struct {
    redis        Pinger
    s3           Pinger
    httpClient   *http.Client
    converterURL string
    provider     string
    visionKey    string
    lookPath     func(string) (string, error)
}

// Options configures the Checker.
type Options struct {
    Redis        Pinger
    S3           Pinger // nil when no bucket is configured
    HTTPClient   *http.Client
    ConverterURL string
    Provider     string
    VisionAPIKey string
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis     Status `json:"redis"`
    S3        Status `json:"s3"`
    Converter Status `json:"converter"`
    Vision    Status `json:"vision"`
    Tesseract Status `json:"tesseract"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    client := opts.HTTPClient
    if client == nil {
        client = &http.Client{Timeout: 5 * time.Second}
    }
    return &Checker{
        redis:        opts.Redis,
        s3:           opts.S3,
        httpClient:   client,
        converterURL: strings.TrimSpace(opts.ConverterURL),
        provider:     opts.Provider,
        visionKey:    strings.TrimSpace(opts.VisionAPIKey),
        lookPath:     exec.LookPath,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:     c.ping(ctx, c.redis, "client unavailable"),
        S3:        c.ping(ctx, c.s3, "Bucket not configured"),
        Converter: c.checkConverter(ctx),
        Vision:    c.checkVision(),
        Tesseract: c.checkTesseract(),
    }
}

func (c *Checker) ping(ctx context.Context, p Pinger, missing string) Status {
    if p == nil {
        return Status{OK: false, Message: missing}
    }
    ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
    defer cancel()
    if err := p.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

// checkConverter treats any HTTP answer below 500 as reachable; the
// endpoint only accepts POST.
func (c *Checker) checkConverter(ctx context.Context) Status {
    if c.converterURL == "" {
        return Status{OK: false, Message: "URL not configured"}
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.converterURL, nil)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    resp, err := c.httpClient.Do(req)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    defer resp.Body.Close()
    if resp.StatusCode >= 500 {
        return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
    }
    return Status{OK: true, Message: "Reachable"}
}

func (c *Checker) checkVision() Status {
    if c.visionKey == "" {
        return Status{OK: false, Message: "API key missing"}
    }
    return Status{OK: true, Message: c.provider + " configured"}
}

func (c *Checker) checkTesseract() Status {
    if _, err := c.lookPath("tesseract"); err != nil {
        return Status{OK: false, Message: "Binary not found"}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
