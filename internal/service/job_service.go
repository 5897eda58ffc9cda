// Package service persists client-side job records in redis and hands the
// long-running generation work to asynq.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/model"
)

const (
	TaskTypeGenerate = "clips:generate"

	jobKeyPrefix    = "clipjob:"
	activeKeyPrefix = "clipjob:active:"

	jobTTL = 24 * time.Hour
	// Must outlive the polling ceiling with margin; released on terminal.
	activeTTL = 10 * time.Minute
)

var (
	// ErrJobNotFound means no record exists for the id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobActive rejects a submission while the account already has a
	// job in flight.
	ErrJobActive = errors.New("a generation job is already in flight")

	// ErrJobFinished rejects cancellation of a job past its terminal state.
	ErrJobFinished = errors.New("job already finished")
)

// GenerateTaskPayload is the asynq task body for one generation job.
type GenerateTaskPayload struct {
	JobID     string `json:"jobId"`
	AccountID string `json:"accountId"`
	MediaID   string `json:"mediaId"`
}

// JobService manages job records and task dispatch.
type JobService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewJobService(redisClient *redis.Client, asynqClient *asynq.Client) *JobService {
	return &JobService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartGenerate creates a job record and enqueues the generation task.
// A redis SETNX key enforces at most one in-flight job per account, so the
// invariant holds across server replicas.
func (s *JobService) StartGenerate(ctx context.Context, accountID, mediaID string) (*model.Job, error) {
	jobID := uuid.New().String()
	now := time.Now()

	ok, err := s.redis.SetNX(ctx, activeKeyPrefix+accountID, jobID, activeTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire job slot: %w", err)
	}
	if !ok {
		return nil, ErrJobActive
	}

	job := &model.Job{
		ID:        jobID,
		AccountID: accountID,
		MediaID:   mediaID,
		State:     model.JobStateSubmitting,
		CreatedAt: now,
	}

	if err := s.SaveJob(ctx, job); err != nil {
		s.Release(ctx, accountID)
		return nil, err
	}

	payloadBytes, err := json.Marshal(&GenerateTaskPayload{
		JobID:     jobID,
		AccountID: accountID,
		MediaID:   mediaID,
	})
	if err != nil {
		s.Release(ctx, accountID)
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeGenerate, payloadBytes)

	// Retries are a user decision here (resubmission with a fresh job),
	// never an asynq-level redelivery.
	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue("clips"),
		asynq.MaxRetry(0),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		s.Release(ctx, accountID)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return job, nil
}

// GetJob loads a job record.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// SaveJob stores a job record.
func (s *JobService) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Cancel marks a job's observation revoked and frees the account's job slot.
// The remote job is untouched; the client just stops waiting.
func (s *JobService) Cancel(ctx context.Context, accountID, jobID string) (*model.Job, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.AccountID != accountID {
		return nil, ErrJobNotFound
	}
	if job.State.IsTerminal() {
		return nil, ErrJobFinished
	}

	job.Canceled = true
	if err := s.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	s.Release(ctx, accountID)
	return job, nil
}

// IsCanceled reports whether a job's observation has been revoked.
func (s *JobService) IsCanceled(ctx context.Context, jobID string) bool {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Canceled
}

// Release frees the account's single-flight slot. Called on every terminal
// transition and on cancellation.
func (s *JobService) Release(ctx context.Context, accountID string) {
	s.redis.Del(ctx, activeKeyPrefix+accountID)
}
