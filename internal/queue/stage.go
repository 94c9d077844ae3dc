package queue

import (
	"fmt"
	"strconv"
)

// StageName identifies one of the two scheduler-driven stages.
type StageName string

const (
	StageExtraction StageName = "extraction"
	StageBasecall   StageName = "basecall"
)

// JobID is a scheduler-assigned job identifier.
type JobID int64

// NoJob marks a stage that has no job id yet.
const NoJob JobID = -1

func (id JobID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether the id came from a successful submission.
func (id JobID) Valid() bool {
	return id > 0
}

// Stage tracks one scheduler job attempt and the attempts made so far.
type Stage struct {
	Submitted bool
	Commenced bool
	Complete  bool
	JobID     JobID
	Attempts  int
}

// NewStage returns a stage that has not been attempted.
func NewStage() Stage {
	return Stage{JobID: NoJob}
}

// MarkSubmitted records a successful submission.
func (s *Stage) MarkSubmitted(id JobID) error {
	if s.Submitted {
		return fmt.Errorf("%w: stage already submitted as job %s", ErrInvalidTransition, s.JobID)
	}
	if !id.Valid() {
		return fmt.Errorf("%w: job id %s", ErrInvalidTransition, id)
	}
	s.Submitted = true
	s.JobID = id
	s.Attempts++
	return nil
}

// MarkCommenced records that the scheduler reported the job running.
func (s *Stage) MarkCommenced() error {
	if !s.Submitted {
		return fmt.Errorf("%w: commenced before submission", ErrInvalidTransition)
	}
	s.Commenced = true
	return nil
}

// MarkComplete records that the scheduler reported a terminal state.
func (s *Stage) MarkComplete() error {
	if !s.Submitted {
		return fmt.Errorf("%w: complete before submission", ErrInvalidTransition)
	}
	s.Complete = true
	return nil
}

// Reset clears the attempt so the stage is submitted again. Attempts is kept
// so retries stay bounded across resets.
func (s *Stage) Reset() {
	s.Submitted = false
	s.Commenced = false
	s.Complete = false
	s.JobID = NoJob
}

// InFlight reports a submitted job that has not reached a terminal state.
func (s Stage) InFlight() bool {
	return s.Submitted && !s.Complete
}

// Consistent reports whether the stage flags satisfy the ordering rules.
func (s Stage) Consistent() bool {
	if s.Commenced && !s.Submitted {
		return false
	}
	return !s.Complete || s.Submitted
}
