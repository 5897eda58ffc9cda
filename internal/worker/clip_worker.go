package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/orchestrator"
	"github.com/clipforge/api/internal/progress"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/websocket"
)

// JobStore is the slice of the job service the worker needs: record
// persistence, the cancel flag, and the per-account slot release.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	SaveJob(ctx context.Context, job *model.Job) error
	Release(ctx context.Context, accountID string)
	IsCanceled(ctx context.Context, jobID string) bool
}

// ClipJobWorker processes generation tasks: it drives the lifecycle
// controller against the remote worker and mirrors every event into the job
// record and the websocket hub.
type ClipJobWorker struct {
	clipWorker client.ClipWorker
	library    client.MediaLibrary
	settler    orchestrator.Settler
	jobs       JobStore
	hub        *websocket.Hub
	interval   time.Duration
	budget     int
}

// NewClipJobWorker creates a new generation task worker.
func NewClipJobWorker(clipWorker client.ClipWorker, library client.MediaLibrary, settler orchestrator.Settler, jobs JobStore, hub *websocket.Hub, interval time.Duration, budget int) *ClipJobWorker {
	return &ClipJobWorker{
		clipWorker: clipWorker,
		library:    library,
		settler:    settler,
		jobs:       jobs,
		hub:        hub,
		interval:   interval,
		budget:     budget,
	}
}

// ProcessTask handles one generation job end to end.
func (w *ClipJobWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.GenerateTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A partial decode can still identify the job; fail it rather
		// than leave the record stuck in a non-terminal state.
		if payload.JobID != "" {
			w.failJob(ctx, jobFromPayload(payload), "malformed task payload")
			return nil
		}
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID
	log.Printf("Starting clip generation job: %s", jobID)

	job, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		// The record is unreadable but the payload identifies the job.
		// Write a failed record and free the account's slot; with no
		// task retries nothing else would ever finish it.
		log.Printf("Failed to load job %s: %v", jobID, err)
		w.failJob(ctx, jobFromPayload(payload), fmt.Sprintf("job record unavailable: %v", err))
		return nil
	}

	media, err := w.library.GetSourceMedia(ctx, payload.MediaID)
	if err != nil {
		w.failJob(ctx, job, fmt.Sprintf("source media unavailable: %v", err))
		return nil
	}

	ctrl := orchestrator.NewController(w.clipWorker, w.settler, nil, w.interval, w.budget)

	handle, err := ctrl.Submit(ctx, orchestrator.SubmitParams{
		JobID:     jobID,
		AccountID: payload.AccountID,
		Media:     media,
	})
	if err != nil {
		w.failJob(ctx, job, err.Error())
		return nil
	}

	// A synchronous worker response has no remote id and never polls; the
	// record goes straight to its terminal state via the event stream.
	if handle.RemoteID != "" {
		job.RemoteJobID = handle.RemoteID
		job.State = model.JobStatePolling
		if err := w.jobs.SaveJob(ctx, job); err != nil {
			log.Printf("Failed to save job %s: %v", jobID, err)
		}
	}

	// Bridge the job record's canceled flag to the controller so a cancel
	// issued on another replica revokes this loop too.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go w.watchCancel(watchCtx, jobID, ctrl)

	for ev := range handle.Events {
		w.applyEvent(ctx, job, ev)
	}

	if !job.State.IsTerminal() {
		// Event stream ended without a terminal event: observation was
		// revoked. The slot was already released by Cancel.
		log.Printf("Clip job %s observation revoked", jobID)
		return nil
	}

	log.Printf("Clip job %s finished: %s", jobID, job.State)
	return nil
}

// applyEvent mirrors one controller event into the job record and the hub.
func (w *ClipJobWorker) applyEvent(ctx context.Context, job *model.Job, ev model.JobEvent) {
	switch ev.Type {
	case model.JobEventProgressed:
		job.Attempt = ev.Attempt
		job.Generation = ev.Generation
		job.RemoteStatus = model.RemoteStatusProcessing
		snap := progress.Estimate(ev.Attempt, w.budget)
		w.hub.BroadcastProgress(job.ID, snap.Percent, model.JobStatePolling, snap.StageLabel)

	case model.JobEventCompleted:
		now := time.Now()
		job.State = model.JobStateCompleted
		job.RemoteStatus = model.RemoteStatusCompleted
		job.ClipCount = ev.ClipCount
		job.SettlementWarning = ev.SettlementWarning
		job.CompletedAt = &now
		w.jobs.Release(ctx, job.AccountID)
		w.hub.BroadcastComplete(job.ID, ev.ClipCount, ev.SettlementWarning)

	case model.JobEventFailed:
		now := time.Now()
		job.State = model.JobStateFailed
		job.RemoteStatus = model.RemoteStatusFailed
		reason := ev.Reason
		job.Error = &reason
		job.CompletedAt = &now
		w.jobs.Release(ctx, job.AccountID)
		w.hub.BroadcastError(job.ID, "JOB_FAILED", reason)

	case model.JobEventTimedOut:
		now := time.Now()
		job.State = model.JobStateTimedOut
		job.CompletedAt = &now
		w.jobs.Release(ctx, job.AccountID)
		w.hub.BroadcastError(job.ID, "JOB_TIMEOUT", "clip generation took too long; stopped waiting")
	}

	if err := w.jobs.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", job.ID, err)
	}
}

// watchCancel polls the job record's canceled flag and revokes the
// controller when it flips.
func (w *ClipJobWorker) watchCancel(ctx context.Context, jobID string, ctrl *orchestrator.Controller) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.jobs.IsCanceled(ctx, jobID) {
				ctrl.Cancel()
				return
			}
		}
	}
}

// jobFromPayload reconstructs a minimal job record when the stored one
// cannot be loaded.
func jobFromPayload(p service.GenerateTaskPayload) *model.Job {
	return &model.Job{
		ID:        p.JobID,
		AccountID: p.AccountID,
		MediaID:   p.MediaID,
		State:     model.JobStateSubmitting,
		CreatedAt: time.Now(),
	}
}

func (w *ClipJobWorker) failJob(ctx context.Context, job *model.Job, errMsg string) {
	now := time.Now()
	job.State = model.JobStateFailed
	job.Error = &errMsg
	job.CompletedAt = &now

	if err := w.jobs.SaveJob(ctx, job); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", job.ID, err)
	}
	w.jobs.Release(ctx, job.AccountID)
	w.hub.BroadcastError(job.ID, "JOB_FAILED", errMsg)
}
