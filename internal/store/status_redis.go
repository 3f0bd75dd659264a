package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job status values visible to clients.
const (
    StatusQueued     = "queued"
    StatusProcessing = "processing"
    StatusCompleted  = "completed"
    StatusError      = "error"
    StatusCancelled  = "cancelled"
)

// Status is the progress record of one roll job.
type Status struct {
    Status   string                 `json:"status"`
    Progress int                    `json:"progress"`
    Message  string                 `json:"message"`
    Start    *time.Time             `json:"start_time,omitempty"`
    End      *time.Time             `json:"end_time,omitempty"`
    Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ErrJobCancelled is returned by Update when a cancelled job would be
// moved to another status.
var ErrJobCancelled = errors.New("job was cancelled")

// Terminal reports whether no further updates are expected.
func (s Status) Terminal() bool {
    return s.Status == StatusCompleted || s.Status == StatusError || s.Status == StatusCancelled
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

func NewRedisStatus(redisURL string) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return NewRedisStatusFromClient(c), nil
}

// NewRedisStatusFromClient shares an existing connection.
func NewRedisStatusFromClient(c *redis.Client) *RedisStatus {
    return &RedisStatus{client: c, keyNS: "roll", ttl: 7 * 24 * time.Hour}
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, err := json.Marshal(st.Metadata)
        if err != nil { return fmt.Errorf("marshal metadata: %w", err) }
        m["metadata"] = string(b)
    }
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, s.key(jobID), m)
    pipe.Expire(ctx, s.key(jobID), s.ttl)
    _, err := pipe.Exec(ctx)
    return err
}

// Update merges status, message and metadata into the stored record.
// A negative progress keeps the stored value. A cancelled job stays
// cancelled.
func (s *RedisStatus) Update(ctx context.Context, jobID, status, message string, progress int, meta map[string]interface{}) error {
    st, _, err := s.Get(ctx, jobID)
    if err != nil { return err }
    st, err = Merge(st, status, message, progress, meta, time.Now().UTC())
    if err != nil { return err }
    return s.Set(ctx, jobID, st)
}

// Merge applies an update to st. It refuses to move a cancelled job to any
// other status.
func Merge(st Status, status, message string, progress int, meta map[string]interface{}, now time.Time) (Status, error) {
    if st.Status == StatusCancelled && status != StatusCancelled {
        return st, ErrJobCancelled
    }
    st.Status = status
    st.Message = message
    if progress >= 0 { st.Progress = progress }
    if len(meta) > 0 {
        if st.Metadata == nil { st.Metadata = map[string]interface{}{} }
        for k, v := range meta { st.Metadata[k] = v }
    }
    if st.Start == nil && status == StatusProcessing { st.Start = &now }
    if st.Terminal() && st.End == nil { st.End = &now }
    return st, nil
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    st := Status{Status: res["status"], Message: res["message"]}
    if p, err := strconv.Atoi(res["progress"]); err == nil { st.Progress = p }
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st, true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

func (s *RedisStatus) Client() *redis.Client { return s.client }
