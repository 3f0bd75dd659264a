package limiter

import (
    "context"
    "strings"
    "sync"

    "golang.org/x/sync/semaphore"
)

// Inflight caps concurrent requests per provider:model across every
// job in the process.
type Inflight struct {
    max int64
    mu  sync.Mutex
    sem map[string]*semaphore.Weighted
}

// New returns a limiter allowing maxInflight calls per key; values
// below 1 become 1.
func New(maxInflight int) *Inflight {
    if maxInflight <= 0 { maxInflight = 1 }
    return &Inflight{max: int64(maxInflight), sem: map[string]*semaphore.Weighted{}}
}

func key(provider, model string) string {
    return strings.ToLower(provider) + ":" + strings.ToLower(model)
}

func (l *Inflight) get(k string) *semaphore.Weighted {
    l.mu.Lock()
    defer l.mu.Unlock()
    s, ok := l.sem[k]
    if !ok {
        s = semaphore.NewWeighted(l.max)
        l.sem[k] = s
    }
    return s
}

// Acquire blocks until a slot for provider:model is free or ctx ends.
func (l *Inflight) Acquire(ctx context.Context, provider, model string) (func(), error) {
    s := l.get(key(provider, model))
    if err := s.Acquire(ctx, 1); err != nil { return nil, err }
    var once sync.Once
    return func() { once.Do(func() { s.Release(1) }) }, nil
}

// TryAcquire reserves a slot without waiting.
func (l *Inflight) TryAcquire(provider, model string) (func(), bool) {
    s := l.get(key(provider, model))
    if !s.TryAcquire(1) { return nil, false }
    var once sync.Once
    return func() { once.Do(func() { s.Release(1) }) }, true
}
