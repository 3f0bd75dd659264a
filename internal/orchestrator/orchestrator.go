package orchestrator

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/rollscan/internal/coordinator"
    "github.com/local/rollscan/internal/dispatcher"
    "github.com/local/rollscan/internal/metrics"
    "github.com/local/rollscan/internal/queue"
    "github.com/local/rollscan/internal/statuscheck"
    "github.com/local/rollscan/internal/storage"
    "github.com/local/rollscan/internal/store"
    "github.com/local/rollscan/internal/voter"
)

type Queue interface {
    Enqueue(ctx context.Context, job queue.RollJob) error
    CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type VoterStore interface {
    Load(ctx context.Context, jobID string) ([]voter.Voter, error)
    MarkVoted(ctx context.Context, jobID, epic string, voted bool, party string, at time.Time) (voter.Voter, error)
}

// PDFValidator rejects uploads that are not PDFs.
type PDFValidator interface {
    RequirePDF(path string) error
}

// Digitizer runs a document synchronously.
type Digitizer interface {
    Digitize(ctx context.Context, doc coordinator.Document) (*coordinator.Result, error)
}

type Dependencies struct {
    Queue     Queue
    Status    StatusStore
    Voters    VoterStore
    Results   storage.Sink
    Validator PDFValidator
    Converter Digitizer            // serves /api/convert; optional
    Checker   *statuscheck.Checker // serves /status; optional

    UploadDir          string
    DefaultConcurrency int
    DefaultPhotos      bool
}

type Orchestrator struct {
    deps Dependencies
    now  func() time.Time
}

func New(deps Dependencies) *Orchestrator {
    if deps.UploadDir == "" { deps.UploadDir = filepath.Join(os.TempDir(), "rollscan", "uploads") }
    if deps.DefaultConcurrency <= 0 { deps.DefaultConcurrency = 2 }
    return &Orchestrator{deps: deps, now: time.Now}
}

const maxUploadMemory = 64 << 20

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
    mux.HandleFunc("/process_upload", o.handleProcessUpload)
    mux.HandleFunc("/progress/", o.handleProgress)
    mux.HandleFunc("/cancel_job", o.handleCancelJob)
    mux.HandleFunc("/download_result/", o.handleDownloadResult)
    mux.HandleFunc("/mark_voted", o.handleMarkVoted)
    mux.HandleFunc("/api/convert", o.handleConvert)
    mux.HandleFunc("/status", o.handleStatus)
    mux.Handle("/metrics", metrics.Handler())
}

type processResp struct {
    Status   string                 `json:"status"`
    JobID    string                 `json:"job_id"`
    Message  string                 `json:"message"`
    Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

// saveUpload persists the multipart "file" field as <dir>/<jobID>_<name>
// and checks that it is a PDF.
func (o *Orchestrator) saveUpload(r *http.Request, jobID string) (string, string, error) {
    if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
        return "", "", fmt.Errorf("invalid multipart form: %w", err)
    }
    file, hdr, err := r.FormFile("file")
    if err != nil { return "", "", errors.New("missing file") }
    defer file.Close()

    if err := os.MkdirAll(o.deps.UploadDir, 0o755); err != nil { return "", "", err }
    name := filepath.Base(hdr.Filename)
    if name == "" || name == "." || name == "/" { name = "roll.pdf" }
    localPath := filepath.Join(o.deps.UploadDir, jobID+"_"+name)
    out, err := os.Create(localPath)
    if err != nil { return "", "", err }
    if _, err := io.Copy(out, file); err != nil { out.Close(); return "", "", err }
    if err := out.Close(); err != nil { return "", "", err }

    if o.deps.Validator != nil {
        if err := o.deps.Validator.RequirePDF(localPath); err != nil {
            _ = os.Remove(localPath)
            return "", "", err
        }
    }
    return localPath, name, nil
}

func formBool(r *http.Request, key string, def bool) bool {
    v := strings.ToLower(strings.TrimSpace(r.FormValue(key)))
    switch v {
    case "":
        return def
    case "1", "true", "on", "yes":
        return true
    }
    return false
}

// handleProcessUpload accepts a roll upload and queues it for digitization.
func (o *Orchestrator) handleProcessUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    jobID := uuid.NewString()
    localPath, name, err := o.saveUpload(r, jobID)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest); return
    }
    photos := formBool(r, "include_photos", o.deps.DefaultPhotos)
    concurrency := o.deps.DefaultConcurrency
    if c, err := strconv.Atoi(r.FormValue("concurrency")); err == nil && c > 0 { concurrency = c }

    start := o.now().UTC()
    meta := map[string]interface{}{"file_local": localPath, "file_name": name, "include_photos": photos, "concurrency": concurrency}
    if err := o.deps.Status.Set(r.Context(), jobID, store.Status{Status: store.StatusQueued, Message: "queued", Start: &start, Metadata: meta}); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("status init failed")
        http.Error(w, "status store unavailable", http.StatusServiceUnavailable); return
    }
    job := queue.RollJob{JobID: jobID, FilePath: localPath, FileName: name, IncludePhotos: photos, Concurrency: concurrency, SubmittedAt: start}
    if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable); return
    }
    log.Info().Str("job_id", jobID).Str("file", name).Bool("photos", photos).Int("concurrency", concurrency).Msg("job created")
    writeJSON(w, http.StatusCreated, processResp{Status: "ok", JobID: jobID, Message: "Upload job created", Metadata: meta})
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/progress/")
    if id == "" { http.Error(w, "missing job id", http.StatusBadRequest); return }
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return }
    writeJSON(w, http.StatusOK, map[string]any{
        "success":    st.Status == store.StatusCompleted,
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "start_time": st.Start,
        "end_time":   st.End,
        "metadata":   st.Metadata,
    })
}

type cancelReq struct {
    JobID  string `json:"job_id"`
    Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancelJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, "invalid json", http.StatusBadRequest); return }
    if req.JobID == "" { http.Error(w, "missing job_id", http.StatusBadRequest); return }
    st, ok, err := o.deps.Status.Get(r.Context(), req.JobID)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return }
    if st.Terminal() {
        http.Error(w, "job already "+st.Status, http.StatusConflict); return
    }
    if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
        http.Error(w, "cancel failed", http.StatusInternalServerError); return
    }
    st.Status = store.StatusCancelled
    st.Message = "Cancelled"
    if req.Reason != "" { st.Message = fmt.Sprintf("Cancelled: %s", req.Reason) }
    now := o.now().UTC()
    st.End = &now
    _ = o.deps.Status.Set(r.Context(), req.JobID, st)
    log.Info().Str("job_id", req.JobID).Str("reason", req.Reason).Msg("job cancelled")
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": req.JobID, "status": store.StatusCancelled})
}

// handleDownloadResult serves the roll as CSV (default) or xlsx. The
// CSV is rendered from the stored voters so poll-day marks are included.
func (o *Orchestrator) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/download_result/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil || !ok { http.Error(w, "not found", http.StatusNotFound); return }
    if st.Status != store.StatusCompleted { http.Error(w, "not ready", http.StatusAccepted); return }

    format := strings.ToLower(r.URL.Query().Get("format"))
    if format == "" { format = "csv" }
    var (
        name, ctype string
        render      func(io.Writer, []voter.Voter) error
    )
    switch format {
    case "csv":
        name, ctype, render = dispatcher.CSVName, dispatcher.CSVContentType, voter.WriteTable
    case "xlsx":
        name, ctype, render = dispatcher.XLSXName, dispatcher.XLSXContentType, voter.WriteWorkbook
    default:
        http.Error(w, "format must be csv or xlsx", http.StatusBadRequest); return
    }

    if o.deps.Voters != nil {
        if voters, err := o.deps.Voters.Load(r.Context(), id); err == nil {
            w.Header().Set("Content-Type", ctype)
            w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=voters_%s.%s", id, format))
            if err := render(w, voters); err != nil {
                log.Error().Err(err).Str("job_id", id).Msg("render download failed")
            }
            return
        }
    }
    if o.deps.Results == nil { http.Error(w, "result not available", http.StatusNotFound); return }
    b, err := o.deps.Results.Open(r.Context(), id, name)
    if errors.Is(err, storage.ErrNotFound) { http.Error(w, "result not available", http.StatusNotFound); return }
    if err != nil { http.Error(w, "failed to read", http.StatusInternalServerError); return }
    w.Header().Set("Content-Type", ctype)
    w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=voters_%s.%s", id, format))
    _, _ = w.Write(b)
}

type markReq struct {
    JobID  string `json:"job_id"`
    EpicNo string `json:"epic_no"`
    Party  string `json:"party"`
    Voted  *bool  `json:"voted,omitempty"`
}

func (o *Orchestrator) handleMarkVoted(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req markReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, "invalid json", http.StatusBadRequest); return }
    if req.JobID == "" || req.EpicNo == "" { http.Error(w, "missing job_id/epic_no", http.StatusBadRequest); return }
    voted := true
    if req.Voted != nil { voted = *req.Voted }
    v, err := o.deps.Voters.MarkVoted(r.Context(), req.JobID, req.EpicNo, voted, req.Party, o.now().UTC())
    switch {
    case errors.Is(err, store.ErrNoRoll), errors.Is(err, voter.ErrNotFound):
        http.Error(w, err.Error(), http.StatusNotFound); return
    case err != nil:
        log.Error().Err(err).Str("job_id", req.JobID).Msg("mark voted failed")
        http.Error(w, "update failed", http.StatusInternalServerError); return
    }
    writeJSON(w, http.StatusOK, v)
}

// handleConvert digitizes an uploaded roll synchronously and returns the
// CSV table. It is the endpoint the remote conversion client calls.
func (o *Orchestrator) handleConvert(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if o.deps.Converter == nil { http.Error(w, "conversion not configured", http.StatusServiceUnavailable); return }
    jobID := "convert-" + uuid.NewString()
    localPath, name, err := o.saveUpload(r, jobID)
    if err != nil { http.Error(w, err.Error(), http.StatusBadRequest); return }
    defer os.Remove(localPath)

    start := o.now()
    res, err := o.deps.Converter.Digitize(r.Context(), coordinator.Document{
        JobID:         jobID,
        Path:          localPath,
        IncludePhotos: formBool(r, "include_photos", false),
    })
    if err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("conversion failed")
        http.Error(w, "conversion failed", http.StatusBadGateway); return
    }
    if len(res.Voters) == 0 {
        http.Error(w, "no voters found", http.StatusUnprocessableEntity); return
    }
    log.Info().Str("job_id", jobID).Str("file", name).Int("voters", len(res.Voters)).Dur("took", o.now().Sub(start)).Msg("conversion done")
    w.Header().Set("Content-Type", dispatcher.CSVContentType)
    if err := voter.WriteTable(w, res.Voters); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("write csv failed")
    }
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    if o.deps.Checker == nil { http.Error(w, "status checks not configured", http.StatusNotFound); return }
    ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
    defer cancel()
    writeJSON(w, http.StatusOK, o.deps.Checker.Summary(ctx))
}
