package history

import (
	"context"
	"log"

	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/orchestration"
)

// Recorder turns generation attempts into agent job records. A Recorder
// without a store records nothing.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder backed by store, which may be nil
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Enabled reports whether attempts are persisted
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Begin records a processing job for an attempt about to start
func (r *Recorder) Begin(ctx context.Context, userID string, req models.GenerationRequest) (*models.AgentJob, error) {
	if !r.Enabled() || userID == "" {
		return nil, nil
	}

	job := &models.AgentJob{
		UserID:   userID,
		Prompt:   req.Prompt,
		Language: req.TargetLanguage(),
	}
	if err := r.store.RecordJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Finish stores the attempt's terminal state. Completed jobs award experience.
// The write is detached from ctx so a client disconnect still lands the record.
func (r *Recorder) Finish(ctx context.Context, job *models.AgentJob, outcome *orchestration.Outcome, runErr error) (*models.Activity, error) {
	if !r.Enabled() || job == nil {
		return nil, nil
	}
	ctx = context.WithoutCancel(ctx)

	if runErr != nil || outcome == nil || outcome.Result == nil {
		message := "generation did not complete"
		if runErr != nil {
			message = runErr.Error()
		}
		if err := r.store.FailJob(ctx, job.ID, message); err != nil {
			return nil, err
		}
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &message
		return nil, nil
	}

	job.Path = outcome.Path
	job.Code = outcome.Result.Code
	if outcome.FallbackErr != nil {
		reason := orchestration.FallbackReason(outcome.FallbackErr)
		job.FallbackReason = &reason
	}

	activity, err := r.store.CompleteJob(ctx, job)
	if err != nil {
		return nil, err
	}

	log.Printf(`{"level":"info","message":"Generation recorded","job_id":"%s","user_id":"%s","path":"%s","exp_gained":%d}`,
		job.ID, job.UserID, job.Path, activity.ExpGained)
	return activity, nil
}
