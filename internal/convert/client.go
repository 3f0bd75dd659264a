// Package convert talks to the remote whole-document conversion endpoint.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/rollscan/internal/ai"
	"github.com/local/rollscan/internal/voter"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4096

// Client posts a PDF and reads back the voter table.
type Client struct {
	url  string
	http *http.Client
}

// New returns a client for the endpoint at url.
func New(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Convert uploads the PDF at path as multipart field "file" and parses the
// returned table. Non-2xx answers come back as *ai.HTTPError.
func (c *Client) Convert(ctx context.Context, path string) ([]voter.Voter, error) {
	if c.url == "" {
		return nil, fmt.Errorf("conversion endpoint not configured")
	}
	body, contentType, err := multipartFile(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/csv")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ai.HTTPError{StatusCode: resp.StatusCode, Body: string(b), Provider: "converter"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	voters, err := voter.ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("parse converted table: %w", err)
	}
	log.Info().Str("file", filepath.Base(path)).Int("voters", len(voters)).Dur("took", time.Since(start)).Msg("remote conversion done")
	return voters, nil
}

func multipartFile(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
