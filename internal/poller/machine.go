package poller

import (
	"time"

	"veorelay/internal/domain"
)

// State is an immutable snapshot of the session's single job. The zero value
// means "no job". Apply never mutates its input; it returns the successor
// state, so transitions can be tested without timers or transport.
type State struct {
	Job *domain.Job
	// Fetching marks an in-flight status check. It overlays the job's
	// logical status and never changes it.
	Fetching bool
	// PollActive reports whether the fixed-interval timer should be live.
	PollActive bool
	// LastError carries a transport or start failure surfaced to the user.
	// It is distinct from Job.ErrorMessage, which is the remote verdict.
	LastError string
}

// Event is one input to the state machine.
type Event interface {
	isEvent()
}

// StartSubmitted records a newly created job before the start call resolves.
type StartSubmitted struct{ Job domain.Job }

// StartSucceeded carries the operation id returned by the relay.
type StartSucceeded struct{ OperationID string }

// StartFailed records a rejected or failed start call.
type StartFailed struct{ Message string }

// PollBegan marks a status check leaving the station.
type PollBegan struct{}

// PollRunning is a done=false response.
type PollRunning struct{}

// PollSucceeded is a done=true response with a result payload.
type PollSucceeded struct{ VideoURI string }

// PollFailed is a done=true response without a result, or with a remote error.
type PollFailed struct{ Message string }

// PollError is a transport or relay failure during a status check. It halts
// polling but leaves the job in its last known status.
type PollError struct{ Message string }

// Cancelled clears the job after a cancel request, regardless of the relay's
// answer.
type Cancelled struct{}

// Reset discards the job unconditionally.
type Reset struct{}

func (StartSubmitted) isEvent() {}
func (StartSucceeded) isEvent() {}
func (StartFailed) isEvent()    {}
func (PollBegan) isEvent()      {}
func (PollRunning) isEvent()    {}
func (PollSucceeded) isEvent()  {}
func (PollFailed) isEvent()     {}
func (PollError) isEvent()      {}
func (Cancelled) isEvent()      {}
func (Reset) isEvent()          {}

// Apply is the pure transition function. Events that make no sense in the
// current state leave it unchanged.
func Apply(s State, ev Event) State {
	switch ev := ev.(type) {
	case StartSubmitted:
		job := ev.Job
		job.Status = domain.JobStatusNotStarted
		return State{Job: &job}

	case StartSucceeded:
		if s.Job == nil || s.Job.Status != domain.JobStatusNotStarted {
			return s
		}
		next := cloneJob(s)
		next.Job.OperationID = ev.OperationID
		next.Job.Status = domain.JobStatusGenerating
		next.PollActive = true
		next.LastError = ""
		return next

	case StartFailed:
		if s.Job == nil || s.Job.Status != domain.JobStatusNotStarted {
			return s
		}
		next := cloneJob(s)
		next.PollActive = false
		next.LastError = ev.Message
		return next

	case PollBegan:
		if !pollable(s) || s.Fetching {
			return s
		}
		next := s
		next.Fetching = true
		return next

	case PollRunning:
		if !pollable(s) {
			return s
		}
		next := cloneJob(s)
		next.Fetching = false
		next.Job.Status = domain.JobStatusRunning
		return next

	case PollSucceeded:
		if !pollable(s) {
			return s
		}
		next := cloneJob(s)
		next.Fetching = false
		next.PollActive = false
		next.Job.Status = domain.JobStatusSucceeded
		next.Job.VideoURI = ev.VideoURI
		return next

	case PollFailed:
		if !pollable(s) {
			return s
		}
		next := cloneJob(s)
		next.Fetching = false
		next.PollActive = false
		next.Job.Status = domain.JobStatusFailed
		next.Job.ErrorMessage = ev.Message
		return next

	case PollError:
		if !pollable(s) {
			return s
		}
		next := cloneJob(s)
		next.Fetching = false
		next.PollActive = false
		next.LastError = ev.Message
		return next

	case Cancelled, Reset:
		return State{}
	}
	return s
}

func pollable(s State) bool {
	return s.Job != nil &&
		s.Job.OperationID != "" &&
		(s.Job.Status == domain.JobStatusGenerating || s.Job.Status == domain.JobStatusRunning)
}

func cloneJob(s State) State {
	next := s
	if s.Job != nil {
		job := *s.Job
		job.UpdatedAt = time.Now()
		next.Job = &job
	}
	return next
}
