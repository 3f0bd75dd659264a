package coordinator

import (
	"fmt"

	"github.com/local/rollscan/internal/metrics"
)

// JobState is the lifecycle of one page in the local fallback.
type JobState int

const (
	Queued JobState = iota
	InFlight
	Done
	Failed
)

func (s JobState) String() string {
	switch s {
	case Queued:
		return "queued"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ExtractionJob is one page awaiting processing. It is never retried.
type ExtractionJob struct {
	Page  int
	State JobState
	Err   error
}

func newJob(page int) *ExtractionJob {
	metrics.IncJobState(Queued.String())
	return &ExtractionJob{Page: page, State: Queued}
}

// advance moves the job forward; it panics on a transition the
// lifecycle does not allow.
func (j *ExtractionJob) advance(to JobState) {
	ok := j.State == Queued && to == InFlight ||
		j.State == InFlight && (to == Done || to == Failed)
	if !ok {
		panic(fmt.Sprintf("page %d: illegal transition %s -> %s", j.Page, j.State, to))
	}
	j.State = to
	metrics.IncJobState(to.String())
}
