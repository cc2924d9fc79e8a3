package gateway

import (
	"context"
	"log"

	"github.com/flashcording/agent-orchestrator/internal/history"
	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/orchestration"
)

// NotificationActivity follows complete when the attempt earned experience
const NotificationActivity = "activity"

// ActivityData is the payload of an activity notification
type ActivityData struct {
	JobID     string `json:"job_id"`
	ExpGained int    `json:"exp_gained"`
}

func activityNotification(resp *GenerationResponse) Notification {
	return Notification{Type: NotificationActivity, Data: ActivityData{JobID: resp.JobID, ExpGained: resp.ExpGained}}
}

// GenerationResponse is returned by the non-streaming generate endpoint
type GenerationResponse struct {
	AttemptID      string                   `json:"attempt_id"`
	JobID          string                   `json:"job_id,omitempty"`
	Path           models.GenerationPath    `json:"path"`
	FallbackReason string                   `json:"fallback_reason,omitempty"`
	ExpGained      int                      `json:"exp_gained"`
	Result         *models.GenerationResult `json:"result"`
}

// runner executes attempts on a session and records them in history
type runner struct {
	sessions *SessionRegistry
	recorder *history.Recorder
}

// run starts and drives one attempt
func (r *runner) run(ctx context.Context, session *orchestration.Session, userID string, req models.GenerationRequest, obs orchestration.Observer) (*GenerationResponse, error) {
	pending, err := session.Start(ctx, req, obs)
	if err != nil {
		return nil, err
	}
	return r.drive(ctx, pending, userID, req)
}

// drive runs a started attempt to its terminal state. Persistence failures
// are logged and never fail the attempt.
func (r *runner) drive(ctx context.Context, pending *orchestration.Pending, userID string, req models.GenerationRequest) (*GenerationResponse, error) {
	job, err := r.recorder.Begin(ctx, userID, req)
	if err != nil {
		log.Printf(`{"level":"warn","message":"Failed to record agent job","user_id":"%s","error":%q}`, userID, err.Error())
		job = nil
	}

	outcome, runErr := pending.Run()

	activity, err := r.recorder.Finish(ctx, job, outcome, runErr)
	if err != nil {
		log.Printf(`{"level":"warn","message":"Failed to finish agent job","user_id":"%s","error":%q}`, userID, err.Error())
	}

	if runErr != nil {
		return nil, runErr
	}

	resp := &GenerationResponse{
		AttemptID: outcome.AttemptID,
		Path:      outcome.Path,
		Result:    outcome.Result,
	}
	if job != nil {
		resp.JobID = job.ID
	}
	if outcome.FallbackErr != nil {
		resp.FallbackReason = orchestration.FallbackReason(outcome.FallbackErr)
	}
	if activity != nil {
		resp.ExpGained = activity.ExpGained
	}
	return resp, nil
}
