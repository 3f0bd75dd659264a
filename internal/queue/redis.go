package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RollJob is the stream payload for one uploaded roll.
type RollJob struct {
    JobID         string    `json:"job_id"`
    FilePath      string    `json:"file_path"`
    FileName      string    `json:"file_name,omitempty"`
    IncludePhotos bool      `json:"include_photos"`
    Concurrency   int       `json:"concurrency,omitempty"`
    SubmittedAt   time.Time `json:"submitted_at"`
}

// Encode serializes the job for the stream.
func (j RollJob) Encode() ([]byte, error) {
    if j.JobID == "" { return nil, errors.New("roll job without job_id") }
    if j.FilePath == "" { return nil, errors.New("roll job without file_path") }
    return json.Marshal(j)
}

// DecodeRollJob parses a stream payload.
func DecodeRollJob(b []byte) (RollJob, error) {
    var j RollJob
    if len(b) == 0 { return j, errors.New("empty payload") }
    if err := json.Unmarshal(b, &j); err != nil { return j, fmt.Errorf("decode roll job: %w", err) }
    if j.JobID == "" || j.FilePath == "" { return j, errors.New("roll job missing job_id or file_path") }
    return j, nil
}

// RedisQueue is a Redis Streams consumer group carrying RollJobs.
type RedisQueue struct {
    client    *redis.Client
    Stream    string
    Group     string
    CancelKey string
    DLQStream string
}

// NewRedisQueue connects to Redis and ensures the stream and group exist.
func NewRedisQueue(redisURL, stream, group string) (*RedisQueue, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    q := &RedisQueue{
        client:    c,
        Stream:    stream,
        Group:     group,
        CancelKey: stream + ":cancelled",
        DLQStream: stream + ":dlq",
    }
    if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
        return nil, fmt.Errorf("xgroup create: %w", err)
    }
    return q, nil
}

func isBusyGroupErr(err error) bool {
    if err == nil { return false }
    return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// Client exposes the connection so stores can share it.
func (q *RedisQueue) Client() *redis.Client { return q.client }

func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a roll job as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, job RollJob) error {
    payload, err := job.Encode()
    if err != nil { return err }
    return q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.Stream,
        Values: map[string]any{"data": string(payload)},
    }).Err()
}

// Dequeue blocks up to timeout for one message. A zero msgID means
// nothing arrived. Malformed payloads are acked and returned as errors.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, RollJob, error) {
    res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
        Group:    q.Group,
        Consumer: consumer,
        Streams:  []string{q.Stream, ">"},
        Count:    1,
        Block:    timeout,
    }).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) { return "", RollJob{}, nil }
        return "", RollJob{}, err
    }
    if len(res) == 0 || len(res[0].Messages) == 0 { return "", RollJob{}, nil }
    msg := res[0].Messages[0]
    var raw []byte
    switch t := msg.Values["data"].(type) {
    case string:
        raw = []byte(t)
    case []byte:
        raw = t
    }
    job, err := DecodeRollJob(raw)
    if err != nil {
        _ = q.AddDLQ(ctx, raw, err.Error())
        _ = q.Ack(ctx, msg.ID)
        return msg.ID, RollJob{}, err
    }
    return msg.ID, job, nil
}

// Ack marks a message as processed.
func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
    if msgID == "" { return nil }
    return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// CancelJob marks a job as cancelled; workers check before and during processing.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
    return q.client.SAdd(ctx, q.CancelKey, jobID).Err()
}

func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
    return q.client.SIsMember(ctx, q.CancelKey, jobID).Result()
}

// AddDLQ records a job that could not be processed.
func (q *RedisQueue) AddDLQ(ctx context.Context, payload []byte, reason string) error {
    return q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.DLQStream, Values: map[string]any{"data": string(payload), "reason": reason}}).Err()
}

// Depths returns the stream and dead-letter lengths.
func (q *RedisQueue) Depths(ctx context.Context) (int64, int64, error) {
    pipe := q.client.Pipeline()
    xlen := pipe.XLen(ctx, q.Stream)
    dlen := pipe.XLen(ctx, q.DLQStream)
    if _, err := pipe.Exec(ctx); err != nil { return 0, 0, err }
    return xlen.Val(), dlen.Val(), nil
}
