// Package orchestrator drives the lifecycle of a remote clip-generation job:
// submission, the bounded polling loop, terminal outcomes and the one-time
// settlement side effect.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/progress"
)

var (
	// ErrNoPlayableSource means the media reference did not resolve to a
	// retrievable URL. Checked before any remote call is made.
	ErrNoPlayableSource = errors.New("source media has no playable URL")

	// ErrJobInFlight rejects a submission while another job is observed.
	ErrJobInFlight = errors.New("a generation job is already in flight")
)

// SubmissionError wraps a remote rejection at submission time. The
// controller has already returned to NotStarted; retry is resubmission.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job submission failed: %s", e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Settler is the ledger dependency invoked exactly once from the Completed
// handler.
type Settler interface {
	Settle(ctx context.Context, accountID, jobID string, clipCount int, reason string) error
}

// SubmitParams identifies one submission.
type SubmitParams struct {
	JobID     string
	AccountID string
	Media     *model.SourceMedia
}

// JobHandle is returned by Submit. Events carries the job's observations in
// poll order; a terminal event is always last, after which the channel is
// closed.
type JobHandle struct {
	JobID      string
	RemoteID   string
	Generation uint64
	Events     <-chan model.JobEvent
}

// Controller owns the job state machine. At most one job polls per
// controller; a generation token, bumped on every Submit and Cancel, lets
// late poll callbacks be discarded without locking around the network calls.
type Controller struct {
	worker   client.ClipWorker
	settler  Settler
	clock    Clock
	interval time.Duration
	budget   int

	mu     sync.Mutex
	state  model.JobState
	gen    uint64
	cancel context.CancelFunc
	events chan model.JobEvent
}

// NewController creates a lifecycle controller.
func NewController(worker client.ClipWorker, settler Settler, clock Clock, interval time.Duration, budget int) *Controller {
	if clock == nil {
		clock = NewClock()
	}
	return &Controller{
		worker:   worker,
		settler:  settler,
		clock:    clock,
		interval: interval,
		budget:   budget,
		state:    model.JobStateNotStarted,
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() model.JobState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit validates preconditions, invokes the remote job-creation call and,
// for asynchronous jobs, starts the polling loop. A synchronous worker
// response short-circuits straight to Completed with the reported count.
func (c *Controller) Submit(ctx context.Context, p SubmitParams) (*JobHandle, error) {
	c.mu.Lock()
	if c.state == model.JobStateSubmitting || c.state == model.JobStatePolling {
		c.mu.Unlock()
		return nil, ErrJobInFlight
	}
	c.gen++
	gen := c.gen
	c.state = model.JobStateSubmitting
	c.mu.Unlock()

	// Precondition: a retrievable source URL, checked before any remote call.
	if p.Media == nil || p.Media.URL == "" {
		c.reset(gen)
		return nil, ErrNoPlayableSource
	}

	resp, err := c.worker.SubmitClipJob(ctx, &client.SubmitClipJobRequest{
		MediaID:         p.Media.ID,
		SourceURL:       p.Media.URL,
		DurationSeconds: p.Media.DurationSeconds,
	})
	if err != nil {
		// Back to NotStarted so a retry carries no residual state.
		c.reset(gen)
		return nil, &SubmissionError{Message: err.Error(), Err: err}
	}

	events := make(chan model.JobEvent, c.budget+2)
	handle := &JobHandle{JobID: p.JobID, Generation: gen, Events: events}

	// A synchronous response carries the result count directly; no polling.
	// The stream is registered first so a concurrent Cancel closes it and
	// the observer never hangs on a stale finish.
	if resp.ClipsCreated != nil {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			close(events)
			return handle, nil
		}
		c.events = events
		c.mu.Unlock()
		c.finish(ctx, gen, events, p, *resp.ClipsCreated)
		return handle, nil
	}

	handle.RemoteID = resp.JobID

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	if gen != c.gen {
		// Cancelled between submission and loop start.
		c.mu.Unlock()
		cancel()
		close(events)
		return handle, nil
	}
	c.state = model.JobStatePolling
	c.cancel = cancel
	c.events = events
	c.mu.Unlock()

	go c.poll(runCtx, gen, events, p, resp.JobID)

	return handle, nil
}

// Cancel revokes observation of the current job. Immediate: the generation
// bump guarantees no pending poll result mutates state afterwards. The
// remote job is not cancelled; the client merely stops waiting.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsTerminal() || c.state == model.JobStateNotStarted {
		return
	}
	c.gen++
	c.state = model.JobStateNotStarted
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// Close the stream so observers unblock; the generation bump already
	// guarantees no further sends on it.
	if c.events != nil {
		close(c.events)
		c.events = nil
	}
}

// poll is the chained polling loop: fixed interval, bounded attempts, one
// outstanding status request at a time. Only the job's status field is
// fetched, never the clip payload.
func (c *Controller) poll(ctx context.Context, gen uint64, events chan model.JobEvent, p SubmitParams, remoteID string) {
	for attempt := 1; attempt <= c.budget; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.interval):
		}

		status, err := c.worker.GetJobStatus(ctx, remoteID)

		// Stale-response guard: nothing observed for a revoked generation.
		if !c.current(gen) {
			return
		}

		if err != nil {
			// The polling channel is allowed to be unreliable; a failed
			// status fetch consumes an attempt but is not terminal.
			log.Printf("[Clip Job %s] poll %d/%d error: %v", p.JobID, attempt, c.budget, err)
			c.emit(gen, events, model.JobEvent{
				Type:       model.JobEventProgressed,
				Generation: gen,
				Attempt:    attempt,
				StageIndex: progress.Estimate(attempt, c.budget).StageIndex,
			})
			continue
		}

		switch status.Status {
		case model.RemoteStatusCompleted:
			count := c.countClips(ctx, p.JobID, remoteID)
			c.finish(ctx, gen, events, p, count)
			return

		case model.RemoteStatusFailed:
			c.terminate(gen, events, model.JobStateFailed, model.JobEvent{
				Type:       model.JobEventFailed,
				Generation: gen,
				Attempt:    attempt,
				Reason:     status.ErrorMessage,
			})
			return

		default:
			c.emit(gen, events, model.JobEvent{
				Type:       model.JobEventProgressed,
				Generation: gen,
				Attempt:    attempt,
				StageIndex: progress.Estimate(attempt, c.budget).StageIndex,
			})
		}
	}

	// Attempt budget exhausted without a terminal status. Distinct from
	// Failed: there is no remote error, the client gives up waiting.
	c.terminate(gen, events, model.JobStateTimedOut, model.JobEvent{
		Type:       model.JobEventTimedOut,
		Generation: gen,
		Attempt:    c.budget,
	})
}

// countClips runs the single follow-up query after a completed status. A
// failed count query yields 0: settlement is then skipped rather than
// charged off an estimate.
func (c *Controller) countClips(ctx context.Context, jobID, remoteID string) int {
	count, err := c.worker.CountClips(ctx, remoteID)
	if err != nil {
		log.Printf("[Clip Job %s] clip count query failed: %v", jobID, err)
		return 0
	}
	return count
}

// finish handles the Completed terminal: the one settlement attempt, then
// the terminal event. Settlement failure is a warning on the event, never a
// job failure — the produced clips stay visible.
func (c *Controller) finish(ctx context.Context, gen uint64, events chan model.JobEvent, p SubmitParams, count int) {
	warning := ""
	if c.settler != nil && count > 0 {
		reason := fmt.Sprintf("clip generation job %s (%d clips)", p.JobID, count)
		if err := c.settler.Settle(ctx, p.AccountID, p.JobID, count, reason); err != nil {
			log.Printf("[Clip Job %s] settlement failed: %v", p.JobID, err)
			warning = "credit deduction could not be recorded; it will be reconciled later"
		}
	}

	c.terminate(gen, events, model.JobStateCompleted, model.JobEvent{
		Type:              model.JobEventCompleted,
		Generation:        gen,
		ClipCount:         count,
		SettlementWarning: warning,
	})
}

// emit delivers a non-terminal event if the generation is still current.
func (c *Controller) emit(gen uint64, events chan model.JobEvent, ev model.JobEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state.IsTerminal() {
		return
	}
	events <- ev
}

// terminate applies a terminal transition and closes the event stream. The
// generation check makes it a no-op for a revoked job.
func (c *Controller) terminate(gen uint64, events chan model.JobEvent, state model.JobState, ev model.JobEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state.IsTerminal() {
		return
	}
	c.state = state
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	events <- ev
	close(events)
	c.events = nil
}

// reset returns the controller to NotStarted after a submission that never
// started polling.
func (c *Controller) reset(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.state = model.JobStateNotStarted
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}
