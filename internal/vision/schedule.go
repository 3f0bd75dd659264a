// Package vision extracts voters from page images with a remote vision model.
package vision

import (
	"time"
)

// Schedule is the retry budget and model rotation for one page.
type Schedule struct {
	Models     []string
	MaxRetries int
	BaseDelay  time.Duration
	MaxJitter  time.Duration
}

// DefaultSchedule rotates three models over six attempts.
func DefaultSchedule(models []string) Schedule {
	return Schedule{Models: models, MaxRetries: 6, BaseDelay: 1500 * time.Millisecond, MaxJitter: 500 * time.Millisecond}
}

// ModelFor returns the model for zero-based attempt i.
func (s Schedule) ModelFor(i int) string {
	if len(s.Models) == 0 {
		return ""
	}
	return s.Models[i%len(s.Models)]
}

// DelayFor is the wait after failed attempt i: base times the attempt
// number, plus jitter.
func (s Schedule) DelayFor(i int, jitter time.Duration) time.Duration {
	return s.BaseDelay*time.Duration(i+1) + jitter
}

// Outcome is the result of one attempt.
type Outcome int

const (
	Success Outcome = iota
	Retry
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retry:
		return "retry"
	}
	return "exhausted"
}

// Step is what follows attempt i.
type Step struct {
	Outcome   Outcome
	NextModel string
	Delay     time.Duration
}

// Next decides the step after attempt i finished with err.
func (s Schedule) Next(i int, err error, jitter time.Duration) Step {
	switch {
	case err == nil:
		return Step{Outcome: Success}
	case i+1 >= s.MaxRetries:
		return Step{Outcome: Exhausted}
	}
	return Step{Outcome: Retry, NextModel: s.ModelFor(i + 1), Delay: s.DelayFor(i, jitter)}
}
