package orchestrator

import (
    "context"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog/log"
)

// CleanupUploads removes uploaded rolls in dir older than maxAge and
// returns how many were removed.
func CleanupUploads(dir string, maxAge time.Duration) int {
    now := time.Now()
    removed := 0
    _ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
        if err != nil || info == nil || info.IsDir() { return nil }
        if now.Sub(info.ModTime()) >= maxAge {
            if os.Remove(path) == nil { removed++ }
        }
        return nil
    })
    return removed
}

// RunJanitor calls CleanupUploads every interval until ctx is done.
func RunJanitor(ctx context.Context, dir string, maxAge, every time.Duration) {
    if every <= 0 { every = time.Hour }
    ticker := time.NewTicker(every)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if n := CleanupUploads(dir, maxAge); n > 0 {
                log.Info().Int("removed", n).Str("dir", dir).Msg("old uploads removed")
            }
        }
    }
}
