package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/internal/websocket"
)

// fakeJobs is an in-memory JobStore that records every persisted snapshot.
type fakeJobs struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	getErr   error
	saves    []model.Job
	released []string
	canceled map[string]bool
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		jobs:     make(map[string]*model.Job),
		canceled: make(map[string]bool),
	}
}

func (f *fakeJobs) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) SaveJob(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	f.saves = append(f.saves, copied)
	return nil
}

func (f *fakeJobs) Release(ctx context.Context, accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, accountID)
}

func (f *fakeJobs) IsCanceled(ctx context.Context, jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled[jobID]
}

func (f *fakeJobs) stored(jobID string) model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[jobID]
}

func (f *fakeJobs) savedStates() []model.JobState {
	f.mu.Lock()
	defer f.mu.Unlock()
	states := make([]model.JobState, len(f.saves))
	for i, s := range f.saves {
		states[i] = s.State
	}
	return states
}

type fakeClipWorker struct {
	mu         sync.Mutex
	submitResp *client.SubmitClipJobResponse
	submitErr  error
	statuses   []client.JobStatusResponse
	statusIdx  int
	clipCount  int
}

func (f *fakeClipWorker) SubmitClipJob(ctx context.Context, req *client.SubmitClipJobRequest) (*client.SubmitClipJobResponse, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResp, nil
}

func (f *fakeClipWorker) GetJobStatus(ctx context.Context, jobID string) (*client.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.statusIdx
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusIdx++
	status := f.statuses[idx]
	return &status, nil
}

func (f *fakeClipWorker) CountClips(ctx context.Context, jobID string) (int, error) {
	return f.clipCount, nil
}

func (f *fakeClipWorker) ListClips(ctx context.Context, jobID string) ([]model.Clip, error) {
	return nil, nil
}

type fakeLibrary struct {
	media *model.SourceMedia
	err   error
}

func (f *fakeLibrary) GetSourceMedia(ctx context.Context, mediaID string) (*model.SourceMedia, error) {
	return f.media, f.err
}

type fakeSettler struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSettler) Settle(ctx context.Context, accountID, jobID string, clipCount int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func generateTask(t *testing.T, jobID, accountID, mediaID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(service.GenerateTaskPayload{
		JobID: jobID, AccountID: accountID, MediaID: mediaID,
	})
	require.NoError(t, err)
	return asynq.NewTask(service.TaskTypeGenerate, payload)
}

func newTestWorker(cw client.ClipWorker, lib client.MediaLibrary, jobs JobStore, settler *fakeSettler) *ClipJobWorker {
	return NewClipJobWorker(cw, lib, settler, jobs, websocket.NewHub(), time.Millisecond, 5)
}

func sourceMedia() *model.SourceMedia {
	return &model.SourceMedia{ID: "m1", URL: "https://x/a.mp4", DurationSeconds: 120}
}

func TestProcessTask_AsyncJob(t *testing.T) {
	cw := &fakeClipWorker{
		submitResp: &client.SubmitClipJobResponse{JobID: "R1"},
		statuses: []client.JobStatusResponse{
			{Status: "processing"},
			{Status: "completed"},
		},
		clipCount: 3,
	}
	jobs := newFakeJobs()
	jobs.SaveJob(context.Background(), &model.Job{
		ID: "job-1", AccountID: "acct-1", MediaID: "m1", State: model.JobStateSubmitting,
	})
	settler := &fakeSettler{}
	w := newTestWorker(cw, &fakeLibrary{media: sourceMedia()}, jobs, settler)

	err := w.ProcessTask(context.Background(), generateTask(t, "job-1", "acct-1", "m1"))
	require.NoError(t, err)

	stored := jobs.stored("job-1")
	assert.Equal(t, model.JobStateCompleted, stored.State)
	assert.Equal(t, "R1", stored.RemoteJobID)
	assert.Equal(t, 3, stored.ClipCount)
	assert.Contains(t, jobs.savedStates(), model.JobStatePolling)
	assert.Equal(t, []string{"acct-1"}, jobs.released)
	assert.Equal(t, 1, settler.calls)
}

func TestProcessTask_SynchronousJobNeverRecordsPolling(t *testing.T) {
	two := 2
	cw := &fakeClipWorker{
		submitResp: &client.SubmitClipJobResponse{ClipsCreated: &two},
	}
	jobs := newFakeJobs()
	jobs.SaveJob(context.Background(), &model.Job{
		ID: "job-1", AccountID: "acct-1", MediaID: "m1", State: model.JobStateSubmitting,
	})
	w := newTestWorker(cw, &fakeLibrary{media: sourceMedia()}, jobs, &fakeSettler{})

	err := w.ProcessTask(context.Background(), generateTask(t, "job-1", "acct-1", "m1"))
	require.NoError(t, err)

	stored := jobs.stored("job-1")
	assert.Equal(t, model.JobStateCompleted, stored.State)
	assert.Equal(t, 2, stored.ClipCount)
	assert.Empty(t, stored.RemoteJobID)
	// The record must never pass through the polling state: there is no
	// remote id, and a status snapshot in that window would lie.
	assert.NotContains(t, jobs.savedStates(), model.JobStatePolling)
}

func TestProcessTask_MissingJobRecordFailsAndReleases(t *testing.T) {
	jobs := newFakeJobs()
	jobs.getErr = service.ErrJobNotFound
	w := newTestWorker(&fakeClipWorker{}, &fakeLibrary{media: sourceMedia()}, jobs, &fakeSettler{})

	err := w.ProcessTask(context.Background(), generateTask(t, "job-1", "acct-1", "m1"))
	require.NoError(t, err)

	// Tasks are not retried, so an unreadable record still has to end in a
	// terminal state and free the account's single-flight slot.
	stored := jobs.stored("job-1")
	assert.Equal(t, model.JobStateFailed, stored.State)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "job record unavailable")
	assert.Equal(t, []string{"acct-1"}, jobs.released)
}

func TestProcessTask_MalformedPayloadStillFailsTheJob(t *testing.T) {
	jobs := newFakeJobs()
	w := newTestWorker(&fakeClipWorker{}, &fakeLibrary{media: sourceMedia()}, jobs, &fakeSettler{})

	// The job id decodes before the malformed field, which is enough to
	// write a terminal record instead of stranding it.
	task := asynq.NewTask(service.TaskTypeGenerate,
		[]byte(`{"jobId":"job-1","accountId":"acct-1","mediaId":42}`))

	err := w.ProcessTask(context.Background(), task)
	require.NoError(t, err)

	stored := jobs.stored("job-1")
	assert.Equal(t, model.JobStateFailed, stored.State)
	assert.Equal(t, []string{"acct-1"}, jobs.released)
}

func TestProcessTask_UndecodablePayloadIsAnError(t *testing.T) {
	jobs := newFakeJobs()
	w := newTestWorker(&fakeClipWorker{}, &fakeLibrary{media: sourceMedia()}, jobs, &fakeSettler{})

	task := asynq.NewTask(service.TaskTypeGenerate, []byte("not json"))

	err := w.ProcessTask(context.Background(), task)
	assert.Error(t, err)
	assert.Empty(t, jobs.saves)
}

func TestProcessTask_MediaUnavailableFailsJob(t *testing.T) {
	jobs := newFakeJobs()
	jobs.SaveJob(context.Background(), &model.Job{
		ID: "job-1", AccountID: "acct-1", MediaID: "m1", State: model.JobStateSubmitting,
	})
	w := newTestWorker(&fakeClipWorker{}, &fakeLibrary{err: context.DeadlineExceeded}, jobs, &fakeSettler{})

	err := w.ProcessTask(context.Background(), generateTask(t, "job-1", "acct-1", "m1"))
	require.NoError(t, err)

	stored := jobs.stored("job-1")
	assert.Equal(t, model.JobStateFailed, stored.State)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "source media unavailable")
	assert.Equal(t, []string{"acct-1"}, jobs.released)
}
