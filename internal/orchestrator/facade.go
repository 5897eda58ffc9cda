package orchestrator

import (
	"context"
	"errors"
	"log"

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/ledger"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/progress"
	"github.com/clipforge/api/internal/resolver"
	"github.com/clipforge/api/internal/service"
)

// CreditGuard is the pre-flight side of the ledger.
type CreditGuard interface {
	Precheck(ctx context.Context, accountID string) error
}

// JobStore manages job records and task dispatch. Satisfied by
// service.JobService.
type JobStore interface {
	StartGenerate(ctx context.Context, accountID, mediaID string) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	Cancel(ctx context.Context, accountID, jobID string) (*model.Job, error)
}

// Facade composes the ledger guard, job store, remote clients and the
// artifact resolver into the three screens the UI consumes: intake,
// processing and gallery. Every terminal state maps to a view; nothing
// escapes as an unhandled error.
type Facade struct {
	worker  client.ClipWorker
	library client.MediaLibrary
	guard   CreditGuard
	jobs    JobStore
	budget  int
}

// NewFacade creates the orchestrator facade.
func NewFacade(worker client.ClipWorker, library client.MediaLibrary, guard CreditGuard, jobs JobStore, budget int) *Facade {
	return &Facade{
		worker:  worker,
		library: library,
		guard:   guard,
		jobs:    jobs,
		budget:  budget,
	}
}

// Intake builds the media-selection snapshot: the chosen source asset plus
// any precondition error (missing source, insufficient credits), surfaced
// before any remote work is spent.
func (f *Facade) Intake(ctx context.Context, accountID, mediaID string) *model.IntakeView {
	view := &model.IntakeView{}

	media, err := f.library.GetSourceMedia(ctx, mediaID)
	if err != nil {
		view.Error = "selected media is unavailable"
		return view
	}
	view.SelectedMedia = media

	if media.URL == "" {
		view.Error = "selected media has no playable source"
		return view
	}

	if err := f.guard.Precheck(ctx, accountID); err != nil {
		var insufficient *ledger.InsufficientError
		if errors.As(err, &insufficient) {
			view.Error = insufficient.Error()
		} else {
			log.Printf("[Orchestrator] precheck failed for %s: %v", accountID, err)
			view.Error = "could not verify credit balance"
		}
	}

	return view
}

// Start runs the pre-flight checks and enqueues a generation job. Returns
// typed errors for the precondition cases so the handler can map them to
// user-recoverable responses.
func (f *Facade) Start(ctx context.Context, accountID, mediaID string) (*model.GenerateClipsResponse, error) {
	if err := f.guard.Precheck(ctx, accountID); err != nil {
		return nil, err
	}

	media, err := f.library.GetSourceMedia(ctx, mediaID)
	if err != nil || media.URL == "" {
		return nil, ErrNoPlayableSource
	}

	job, err := f.jobs.StartGenerate(ctx, accountID, mediaID)
	if err != nil {
		return nil, err
	}

	return &model.GenerateClipsResponse{
		JobID:     job.ID,
		State:     job.State,
		CreatedAt: job.CreatedAt,
	}, nil
}

// Processing builds the waiting-screen snapshot for a job.
func (f *Facade) Processing(ctx context.Context, accountID, jobID string) (*model.ProcessingView, error) {
	job, err := f.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.AccountID != accountID {
		return nil, service.ErrJobNotFound
	}

	view := &model.ProcessingView{
		JobID:             job.ID,
		State:             job.State,
		SettlementWarning: job.SettlementWarning,
	}

	switch job.State {
	case model.JobStateCompleted:
		snap := progress.Done()
		view.Percent = snap.Percent
		view.StageLabel = snap.StageLabel
		view.StagesCompleted = snap.StagesCompleted

	case model.JobStateFailed:
		snap := progress.Estimate(job.Attempt, f.budget)
		view.Percent = snap.Percent
		view.StageLabel = snap.StageLabel
		view.StagesCompleted = snap.StagesCompleted
		if job.Error != nil {
			view.Error = *job.Error
		} else {
			view.Error = "clip generation failed"
		}

	case model.JobStateTimedOut:
		snap := progress.Estimate(job.Attempt, f.budget)
		view.Percent = snap.Percent
		view.StageLabel = snap.StageLabel
		view.StagesCompleted = snap.StagesCompleted
		view.Error = "clip generation took too long; try again"

	default:
		snap := progress.Estimate(job.Attempt, f.budget)
		view.Percent = snap.Percent
		view.StageLabel = snap.StageLabel
		view.StagesCompleted = snap.StagesCompleted
	}

	return view, nil
}

// Cancel revokes observation of a job.
func (f *Facade) Cancel(ctx context.Context, accountID, jobID string) (*model.CancelJobResponse, error) {
	job, err := f.jobs.Cancel(ctx, accountID, jobID)
	if err != nil {
		return nil, err
	}
	return &model.CancelJobResponse{
		JobID:    job.ID,
		State:    job.State,
		Canceled: true,
	}, nil
}

// Gallery builds the results snapshot: the job's clips, each resolved to
// its best playable and thumbnail URLs. A clip with no resolvable URL stays
// in the list unplayable; it never blocks the rest of the gallery.
func (f *Facade) Gallery(ctx context.Context, jobID string) (*model.GalleryView, error) {
	clips, err := f.worker.ListClips(ctx, jobID)
	if err != nil {
		return nil, err
	}

	sources := make(map[string]*model.SourceMedia)
	resolved := make([]model.ResolvedClip, 0, len(clips))

	for _, clip := range clips {
		if clip.DeletedAt != nil {
			continue
		}

		source, ok := sources[clip.SourceMediaID]
		if !ok {
			source, err = f.library.GetSourceMedia(ctx, clip.SourceMediaID)
			if err != nil {
				// Fallback tiers that need the source are skipped; the
				// clip's own fields may still resolve.
				log.Printf("[Orchestrator] source media %s unavailable: %v", clip.SourceMediaID, err)
				source = nil
			}
			sources[clip.SourceMediaID] = source
		}

		resolved = append(resolved, resolver.Resolve(clip, source))
	}

	return &model.GalleryView{JobID: jobID, Clips: resolved}, nil
}
