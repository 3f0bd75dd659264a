package store

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"

    "github.com/local/rollscan/internal/voter"
)

// ErrNoRoll is returned when a job has no stored voters.
var ErrNoRoll = errors.New("no voters stored for job")

// VoterStore keeps the extracted roll of each job as one JSON value.
type VoterStore struct {
    client *redis.Client
    ttl    time.Duration
}

func NewVoterStore(c *redis.Client) *VoterStore {
    return &VoterStore{client: c, ttl: 7 * 24 * time.Hour}
}

func (s *VoterStore) key(jobID string) string { return fmt.Sprintf("roll:%s:voters", jobID) }

func (s *VoterStore) Save(ctx context.Context, jobID string, voters []voter.Voter) error {
    if voters == nil { voters = []voter.Voter{} }
    b, err := json.Marshal(voters)
    if err != nil { return fmt.Errorf("marshal voters: %w", err) }
    return s.client.Set(ctx, s.key(jobID), b, s.ttl).Err()
}

func (s *VoterStore) Load(ctx context.Context, jobID string) ([]voter.Voter, error) {
    b, err := s.client.Get(ctx, s.key(jobID)).Bytes()
    if errors.Is(err, redis.Nil) { return nil, ErrNoRoll }
    if err != nil { return nil, err }
    var out []voter.Voter
    if err := json.Unmarshal(b, &out); err != nil { return nil, fmt.Errorf("decode voters: %w", err) }
    return out, nil
}

// MarkVoted records or clears the poll-day state of one voter under a
// WATCH so concurrent marks on the same roll do not clobber each other.
func (s *VoterStore) MarkVoted(ctx context.Context, jobID, epic string, voted bool, party string, at time.Time) (voter.Voter, error) {
    var updated voter.Voter
    key := s.key(jobID)
    txf := func(tx *redis.Tx) error {
        b, err := tx.Get(ctx, key).Bytes()
        if errors.Is(err, redis.Nil) { return ErrNoRoll }
        if err != nil { return err }
        var roll voter.Roll
        if err := json.Unmarshal(b, &roll); err != nil { return fmt.Errorf("decode voters: %w", err) }
        v, err := roll.Mark(epic, voted, party, at)
        if err != nil { return err }
        updated = v
        out, err := json.Marshal(roll)
        if err != nil { return err }
        _, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
            p.Set(ctx, key, out, s.ttl)
            return nil
        })
        return err
    }
    for i := 0; i < 3; i++ {
        err := s.client.Watch(ctx, txf, key)
        if errors.Is(err, redis.TxFailedErr) { continue }
        return updated, err
    }
    return updated, redis.TxFailedErr
}
