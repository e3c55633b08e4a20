package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"veorelay/internal/domain"
	"veorelay/internal/infra"
	"veorelay/internal/relay"
)

// API is the slice of the relay surface the poller needs.
type API interface {
	Generate(ctx context.Context, req relay.GenerateRequest) (string, error)
	Status(ctx context.Context, operationID string) (relay.StatusEnvelope, error)
	Cancel(ctx context.Context, operationID string) error
}

// Options configures a Poller.
type Options struct {
	Relay    API
	Interval time.Duration
	Logger   infra.Logger
	// OnTransition, when set, is invoked after every state change with a
	// snapshot. It runs outside the poller's lock.
	OnTransition func(State)
}

// Poller owns a single job at a time and drives it through the relay: one
// fixed-interval timer while the job is live, at most one status check in
// flight, and fail-closed on any transport error. There is deliberately no
// retry or backoff.
type Poller struct {
	relay        API
	interval     time.Duration
	logger       infra.Logger
	onTransition func(State)

	mu        sync.Mutex
	state     State
	starting  bool
	stopTimer context.CancelFunc
}

// New creates an idle poller with no job.
func New(opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		relay:        opts.Relay,
		interval:     interval,
		logger:       opts.Logger,
		onTransition: opts.OnTransition,
	}
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return snapshotLocked(p.state)
}

// Start submits a new job. Any previous job and its timer are discarded
// first. Exactly one start call may be in flight; a concurrent Start is
// rejected with ErrJobBusy.
func (p *Poller) Start(ctx context.Context, prompt string, image *domain.ReferenceImage, params domain.GenerationParams) error {
	if prompt == "" {
		return domain.ErrEmptyPrompt
	}
	if image != nil && !image.IsImage() {
		return domain.ErrNotAnImage
	}

	p.mu.Lock()
	if p.starting {
		p.mu.Unlock()
		return domain.ErrJobBusy
	}
	p.starting = true
	p.stopTimerLocked()
	p.applyLocked(StartSubmitted{Job: domain.Job{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Image:     image,
		Params:    params,
		CreatedAt: time.Now(),
	}})
	p.mu.Unlock()

	operationID, err := p.relay.Generate(ctx, relay.GenerateRequest{
		Prompt: prompt,
		Image:  image,
		Params: params,
	})

	p.mu.Lock()
	p.starting = false
	if err != nil {
		p.applyLocked(StartFailed{Message: err.Error()})
		p.mu.Unlock()
		p.notify()
		return err
	}
	p.applyLocked(StartSucceeded{OperationID: operationID})
	// A Reset that landed while the start call was in flight leaves the
	// transition a no-op; in that case no timer may come up.
	if p.state.PollActive {
		p.startTimerLocked(operationID)
	}
	p.mu.Unlock()
	p.notify()
	return nil
}

// Cancel stops polling and clears the job, then forwards the cancellation to
// the relay best-effort. The local effect does not depend on the relay call.
func (p *Poller) Cancel(ctx context.Context) error {
	p.mu.Lock()
	s := p.state
	if s.Job == nil || s.Job.OperationID == "" || s.Job.Status.Terminal() {
		p.mu.Unlock()
		return domain.ErrNoActiveJob
	}
	operationID := s.Job.OperationID
	p.stopTimerLocked()
	p.applyLocked(Cancelled{})
	p.mu.Unlock()
	p.notify()

	if err := p.relay.Cancel(ctx, operationID); err != nil {
		p.logger.Warn().Err(err).Str("operation_id", operationID).Msg("poller: relay cancel failed")
	}
	return nil
}

// Reset stops any active timer and discards the current job unconditionally.
func (p *Poller) Reset() {
	p.mu.Lock()
	p.stopTimerLocked()
	p.applyLocked(Reset{})
	p.mu.Unlock()
	p.notify()
}

// startTimerLocked launches the poll loop for the given operation. Callers
// hold p.mu. Any previous timer has already been torn down, so at most one
// loop is ever live.
func (p *Poller) startTimerLocked(operationID string) {
	ctx, cancel := context.WithCancel(context.Background())
	p.stopTimer = cancel
	go p.loop(ctx, operationID)
}

func (p *Poller) stopTimerLocked() {
	if p.stopTimer != nil {
		p.stopTimer()
		p.stopTimer = nil
	}
}

func (p *Poller) loop(ctx context.Context, operationID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.pollOnce(ctx, operationID) {
				return
			}
		}
	}
}

// pollOnce performs one status check. It returns false once polling should
// stop. The reentrancy guard lives in the PollBegan transition: a tick that
// lands while a check is in flight leaves the state unchanged and is
// swallowed here.
func (p *Poller) pollOnce(ctx context.Context, operationID string) bool {
	p.mu.Lock()
	if !p.currentLocked(operationID) || !p.state.PollActive {
		p.mu.Unlock()
		return false
	}
	if p.state.Fetching {
		p.mu.Unlock()
		return true
	}
	p.applyLocked(PollBegan{})
	p.mu.Unlock()

	envelope, err := p.relay.Status(ctx, operationID)

	p.mu.Lock()
	// A response for a job that has since been cancelled, reset, or
	// replaced is stale; drop it.
	if !p.currentLocked(operationID) {
		p.mu.Unlock()
		return false
	}
	var cont bool
	switch {
	case err != nil:
		p.applyLocked(PollError{Message: err.Error()})
	case envelope.Status == string(domain.JobStatusRunning):
		p.applyLocked(PollRunning{})
		cont = true
	case envelope.Status == string(domain.JobStatusSucceeded) && envelope.VideoURI != "":
		p.applyLocked(PollSucceeded{VideoURI: envelope.VideoURI})
	case envelope.Status == string(domain.JobStatusSucceeded):
		p.applyLocked(PollFailed{Message: "generation finished without a result"})
	default:
		message := envelope.Error
		if message == "" {
			message = "generation failed"
		}
		p.applyLocked(PollFailed{Message: message})
	}
	if !cont {
		p.stopTimerLocked()
	}
	p.mu.Unlock()
	p.notify()
	return cont
}

func (p *Poller) currentLocked(operationID string) bool {
	return p.state.Job != nil && p.state.Job.OperationID == operationID
}

func (p *Poller) applyLocked(ev Event) {
	p.state = Apply(p.state, ev)
}

func (p *Poller) notify() {
	if p.onTransition == nil {
		return
	}
	p.onTransition(p.Snapshot())
}

func snapshotLocked(s State) State {
	if s.Job != nil {
		job := *s.Job
		s.Job = &job
	}
	return s
}
