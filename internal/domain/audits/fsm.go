package audits

import (
	"errors"
	"fmt"
	"time"
)

// Event names one edge of the audit state machine.
type Event string

const (
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventFail     Event = "fail"
)

var (
	// ErrInvalidTransition is wrapped by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid audit status transition")

	// ErrScoreOutOfRange is returned when completing with a score outside [0,100].
	ErrScoreOutOfRange = errors.New("optimization score must be between 0 and 100")
)

// TransitionError reports an edge that does not exist from the current state.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s audit in status %q", ErrInvalidTransition, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Start moves pending -> processing.
func (a *Audit) Start(now time.Time) error {
	if a.Status != StatusPending {
		return &TransitionError{From: a.Status, Event: EventStart}
	}
	a.Status = StatusProcessing
	a.StartedAt = &now
	return nil
}

// Complete moves processing -> completed and records the engine metrics.
// The score is not clamped here; the engine already produced a value in range.
func (a *Audit) Complete(score int, totalImpact float64, findings int, now time.Time) error {
	if a.Status != StatusProcessing {
		return &TransitionError{From: a.Status, Event: EventComplete}
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: got %d", ErrScoreOutOfRange, score)
	}
	a.Status = StatusCompleted
	a.Score = &score
	a.TotalImpact = &totalImpact
	a.FindingsTotal = findings
	a.ErrorMessage = ""
	a.CompletedAt = &now
	return nil
}

// Fail moves pending or processing -> failed, keeping the error text for display.
func (a *Audit) Fail(message string, now time.Time) error {
	if a.Status.IsTerminal() {
		return &TransitionError{From: a.Status, Event: EventFail}
	}
	a.Status = StatusFailed
	a.ErrorMessage = message
	a.CompletedAt = &now
	return nil
}
