package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no artifact exists for a job.
var ErrNotFound = errors.New("artifact not found")

// Sink stores job artifacts.
type Sink interface {
	Save(ctx context.Context, jobID, name string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, jobID, name string) ([]byte, error)
}

// Local keeps artifacts under Dir/<jobID>/<name>.
type Local struct {
	Dir string
}

func (l Local) path(jobID, name string) (string, error) {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	return filepath.Join(l.Dir, jobID, filepath.Base(name)), nil
}

func (l Local) Save(_ context.Context, jobID, name string, data []byte, _ string) (string, error) {
	p, err := l.path(jobID, name)
	if err != nil { return "", err }
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil { return "", err }
	if err := os.WriteFile(p, data, 0o644); err != nil { return "", err }
	return p, nil
}

func (l Local) Open(_ context.Context, jobID, name string) ([]byte, error) {
	p, err := l.path(jobID, name)
	if err != nil { return nil, err }
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) { return nil, ErrNotFound }
	return b, err
}

// Mirrored writes to Primary and copies to Archive when set. Archive
// failures are logged and do not fail the save; reads fall back to Archive.
type Mirrored struct {
	Primary Sink
	Archive Sink
}

func (m Mirrored) Save(ctx context.Context, jobID, name string, data []byte, contentType string) (string, error) {
	loc, err := m.Primary.Save(ctx, jobID, name, data, contentType)
	if err != nil { return "", err }
	if m.Archive != nil {
		if remote, aerr := m.Archive.Save(ctx, jobID, name, data, contentType); aerr != nil {
			log.Warn().Err(aerr).Str("job_id", jobID).Str("name", name).Msg("archive copy failed")
		} else {
			log.Info().Str("job_id", jobID).Str("location", remote).Msg("archived")
		}
	}
	return loc, nil
}

func (m Mirrored) Open(ctx context.Context, jobID, name string) ([]byte, error) {
	b, err := m.Primary.Open(ctx, jobID, name)
	if err == nil || m.Archive == nil { return b, err }
	return m.Archive.Open(ctx, jobID, name)
}
