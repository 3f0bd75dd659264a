package dispatcher

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/rollscan/internal/coordinator"
    "github.com/local/rollscan/internal/queue"
    "github.com/local/rollscan/internal/store"
    "github.com/local/rollscan/internal/voter"
)

type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, queue.RollJob, error)
    Ack(ctx context.Context, msgID string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// Digitizer turns one document into voters.
type Digitizer interface {
    Digitize(ctx context.Context, doc coordinator.Document) (*coordinator.Result, error)
}

type StatusStore interface {
    Update(ctx context.Context, jobID, status, message string, progress int, meta map[string]interface{}) error
}

type VoterSaver interface {
    Save(ctx context.Context, jobID string, voters []voter.Voter) error
}

// ArtifactSink receives the exported tables.
type ArtifactSink interface {
    Save(ctx context.Context, jobID, name string, data []byte, contentType string) (string, error)
}

type Config struct {
    Concurrency  int           // parallel jobs
    JobTimeout   time.Duration // 0 means none
    PollInterval time.Duration // cancellation check
    Consumer     string
}

type Worker struct {
    cfg     Config
    q       Queue
    digit   Digitizer
    status  StatusStore
    voters  VoterSaver
    results ArtifactSink

    stop chan struct{}
    wg   sync.WaitGroup
}

func New(cfg Config, q Queue, d Digitizer, status StatusStore, voters VoterSaver, results ArtifactSink) *Worker {
    if cfg.Concurrency <= 0 { cfg.Concurrency = 1 }
    if cfg.PollInterval <= 0 { cfg.PollInterval = 2 * time.Second }
    if cfg.Consumer == "" { cfg.Consumer = "rollscan" }
    return &Worker{cfg: cfg, q: q, digit: d, status: status, voters: voters, results: results, stop: make(chan struct{})}
}

func (w *Worker) Start() {
    for i := 0; i < w.cfg.Concurrency; i++ {
        w.wg.Add(1)
        go w.loop(i)
    }
}

// Stop signals the loops and waits for in-flight jobs or ctx.
func (w *Worker) Stop(ctx context.Context) error {
    close(w.stop)
    done := make(chan struct{})
    go func() { w.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (w *Worker) loop(id int) {
    defer w.wg.Done()
    consumer := fmt.Sprintf("%s-%d", w.cfg.Consumer, id)
    log.Info().Int("worker", id).Msg("dispatcher worker started")
    for {
        select {
        case <-w.stop:
            log.Info().Int("worker", id).Msg("dispatcher worker stopped")
            return
        default:
        }

        msgID, job, err := w.q.Dequeue(context.Background(), consumer, 2*time.Second)
        if err != nil {
            log.Error().Err(err).Int("worker", id).Msg("queue dequeue error")
            time.Sleep(500 * time.Millisecond)
            continue
        }
        if msgID == "" { continue }

        w.Process(context.Background(), job)
        if err := w.q.Ack(context.Background(), msgID); err != nil {
            log.Warn().Err(err).Str("job_id", job.JobID).Msg("ack failed")
        }
    }
}

// Process runs one roll job to a terminal status.
func (w *Worker) Process(ctx context.Context, job queue.RollJob) {
    lg := log.With().Str("job_id", job.JobID).Str("file", job.FilePath).Logger()
    if cancelled, _ := w.q.IsCancelled(ctx, job.JobID); cancelled {
        lg.Warn().Msg("job cancelled before processing; skipping")
        return
    }

    start := time.Now()
    w.setStatus(ctx, job.JobID, store.StatusProcessing, "digitizing", 5, nil)

    var jobCtx context.Context
    var cancel context.CancelFunc
    if w.cfg.JobTimeout > 0 {
        jobCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
    } else {
        jobCtx, cancel = context.WithCancel(ctx)
    }
    defer cancel()
    var cancelled bool
    var mu sync.Mutex
    monitorDone := make(chan struct{})
    go func() {
        defer close(monitorDone)
        if w.monitor(jobCtx, job.JobID) {
            mu.Lock()
            cancelled = true
            mu.Unlock()
            cancel()
        }
    }()

    res, err := w.digit.Digitize(jobCtx, coordinator.Document{
        JobID:         job.JobID,
        Path:          job.FilePath,
        IncludePhotos: job.IncludePhotos,
        Concurrency:   job.Concurrency,
    })
    cancel()
    <-monitorDone

    mu.Lock()
    wasCancelled := cancelled
    mu.Unlock()
    if !wasCancelled {
        // a cancel may land after the monitor's last poll
        wasCancelled, _ = w.q.IsCancelled(ctx, job.JobID)
    }

    switch {
    case wasCancelled:
        lg.Info().Msg("job cancelled during processing")
        w.setStatus(ctx, job.JobID, store.StatusCancelled, "Cancelled", -1, nil)
        return
    case err != nil && res != nil && len(res.Voters) > 0 && errors.Is(err, context.DeadlineExceeded):
        lg.Warn().Err(err).Int("voters", len(res.Voters)).Msg("job timed out, keeping partial result")
    case err != nil:
        lg.Error().Err(err).Msg("digitization failed")
        w.setStatus(ctx, job.JobID, store.StatusError, err.Error(), -1, nil)
        return
    }

    meta, err := w.persist(ctx, job.JobID, res)
    if err != nil {
        lg.Error().Err(err).Msg("persisting result failed")
        w.setStatus(ctx, job.JobID, store.StatusError, "could not store result", -1, nil)
        return
    }
    meta["duration_sec"] = time.Since(start).Seconds()
    msg := fmt.Sprintf("extracted %d voters", len(res.Voters))
    if len(res.Voters) == 0 {
        msg = "no voters found"
    }
    w.setStatus(ctx, job.JobID, store.StatusCompleted, msg, 100, meta)
    lg.Info().Int("voters", len(res.Voters)).Str("source", res.Source).Dur("took", time.Since(start)).Msg("job completed")
}

// monitor polls the cancel set until ctx ends; it reports whether the
// job was cancelled.
func (w *Worker) monitor(ctx context.Context, jobID string) bool {
    ticker := time.NewTicker(w.cfg.PollInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return false
        case <-ticker.C:
            if c, err := w.q.IsCancelled(context.Background(), jobID); err == nil && c {
                return true
            }
        }
    }
}

func (w *Worker) persist(ctx context.Context, jobID string, res *coordinator.Result) (map[string]interface{}, error) {
    if err := w.voters.Save(ctx, jobID, res.Voters); err != nil {
        return nil, fmt.Errorf("save voters: %w", err)
    }
    meta := map[string]interface{}{
        "voters":       len(res.Voters),
        "source":       res.Source,
        "total_pages":  res.TotalPages,
        "pages_done":   len(res.Processed),
        "pages_failed": len(res.FailedPages),
    }
    if res.RemoteErr != nil {
        meta["remote_error"] = res.RemoteErr.Error()
    }
    if w.results == nil {
        return meta, nil
    }
    exports, err := Export(res.Voters)
    if err != nil {
        return nil, err
    }
    for _, e := range exports {
        loc, err := w.results.Save(ctx, jobID, e.Name, e.Data, e.ContentType)
        if err != nil {
            return nil, fmt.Errorf("save %s: %w", e.Name, err)
        }
        meta["result_"+e.Format] = loc
    }
    return meta, nil
}

func (w *Worker) setStatus(ctx context.Context, jobID, status, msg string, progress int, meta map[string]interface{}) {
    if err := w.status.Update(ctx, jobID, status, msg, progress, meta); err != nil {
        log.Warn().Err(err).Str("job_id", jobID).Str("status", status).Msg("status update failed")
    }
}
