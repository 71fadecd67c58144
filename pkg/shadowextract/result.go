package shadowextract

import (
	"errors"
	"fmt"
	"time"

	"github.com/function61/hostkit/pkg/hiveextract"
)

var (
	ErrRunInProgress = errors.New("an extraction is already running for this volume")
)

// the primary failure of a run, with the step that failed
type StageError struct {
	Stage State // the state the run was trying to reach
	Err   error
}

func (s *StageError) Error() string {
	return fmt.Sprintf("%s: %v", s.Stage.stepDescription(), s.Err)
}

func (s *StageError) Unwrap() error {
	return s.Err
}

// a release step that failed. never changes the run's primary outcome.
type Warning struct {
	Stage State
	Err   error
	Hint  string // what the operator should do about it, if anything
}

func (w Warning) String() string {
	msg := fmt.Sprintf("compensation failed: %s: %v", w.Stage.stepDescription(), w.Err)
	if w.Hint != "" {
		msg += "; " + w.Hint
	}

	return msg
}

type Request struct {
	Volume      string
	Destination string
	Targets     []hiveextract.Target
}

type RunResult struct {
	RunID       string
	Volume      string
	Destination string
	SnapshotID  string
	DevicePath  string
	Started     time.Time
	Finished    time.Time
	State       State       // terminal: StateDone or StateFailed
	Reached     []State     // states entered, in order
	Err         *StageError // non-nil iff State == StateFailed
	Results     []hiveextract.Result
	Warnings    []Warning
}

type Counts struct {
	Copied  int
	Skipped int
	Failed  int
}

func (r *RunResult) Counts() Counts {
	counts := Counts{}

	for _, res := range r.Results {
		switch res.Outcome {
		case hiveextract.OutcomeCopied:
			counts.Copied++
		case hiveextract.OutcomeSkipped:
			counts.Skipped++
		case hiveextract.OutcomeFailed:
			counts.Failed++
		}
	}

	return counts
}

// lifecycle completed and every target we actually expected is in the destination.
// a missing conditional target (no directory service on this host) is fine.
func (r *RunResult) Succeeded() bool {
	if r.State != StateDone {
		return false
	}

	for _, res := range r.Results {
		switch res.Outcome {
		case hiveextract.OutcomeFailed:
			return false
		case hiveextract.OutcomeSkipped:
			if !res.Target.Conditional {
				return false
			}
		}
	}

	return true
}

// lifecycle completed, but some files are missing
func (r *RunResult) Partial() bool {
	return r.State == StateDone && !r.Succeeded()
}

// 0 = success, 2 = partial success, 1 = fatal failure
func (r *RunResult) ExitCode() int {
	switch {
	case r.Succeeded():
		return 0
	case r.Partial():
		return 2
	default:
		return 1
	}
}

// the primary failure as an error value (nil if the lifecycle completed)
func (r *RunResult) Failure() error {
	if r.Err == nil {
		return nil
	}

	return r.Err
}

func (r *RunResult) HasReached(state State) bool {
	for _, reached := range r.Reached {
		if reached == state {
			return true
		}
	}

	return false
}

func (r *RunResult) enter(state State) {
	r.State = state
	r.Reached = append(r.Reached, state)
}

func (r *RunResult) fail(stage State, err error) {
	r.State = StateFailed
	r.Err = &StageError{Stage: stage, Err: err}
}
