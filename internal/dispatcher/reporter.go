package dispatcher

import (
    "context"

    "github.com/rs/zerolog/log"

    "github.com/local/rollscan/internal/coordinator"
    "github.com/local/rollscan/internal/store"
)

// StatusReporter forwards coordinator progress into the job status.
// Batch progress maps onto 10..95 so completion stays with the worker.
type StatusReporter struct {
    Status StatusStore
}

func (r StatusReporter) Report(ctx context.Context, jobID, status, message string, meta map[string]any) {
    if jobID == "" { return }
    st := store.StatusProcessing
    if status == coordinator.StatusError {
        st = store.StatusError
    }
    progress := -1
    done, total := intFromMeta(meta, "batches_done"), intFromMeta(meta, "batches_total")
    if total > 0 {
        progress = 10 + done*85/total
    }
    if err := r.Status.Update(ctx, jobID, st, message, progress, meta); err != nil {
        log.Warn().Err(err).Str("job_id", jobID).Msg("progress update failed")
    }
}

func intFromMeta(m map[string]any, key string) int {
    if m == nil { return 0 }
    switch t := m[key].(type) {
    case float64: return int(t)
    case int: return t
    }
    return 0
}
