package history

import (
	"context"
	"errors"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

var (
	// ErrNotFound is returned when a user or job does not exist
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when creating a user whose email is taken
	ErrUserExists = errors.New("user already exists")
)

// Store persists users, generation jobs and the activity feed
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// RecordJob inserts a job in the processing state
	RecordJob(ctx context.Context, job *models.AgentJob) error
	// CompleteJob marks the job completed, records a code_generated activity
	// and awards experience to its owner in a single transaction
	CompleteJob(ctx context.Context, job *models.AgentJob) (*models.Activity, error)
	FailJob(ctx context.Context, jobID, message string) error
	GetJob(ctx context.Context, userID, jobID string) (*models.AgentJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]models.AgentJob, error)
	ListActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error)

	Ping(ctx context.Context) error
	Close() error
}

// DefaultListLimit bounds list queries when the caller passes no limit
const DefaultListLimit = 20

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return DefaultListLimit
	}
	return limit
}

// newActivity builds the activity awarded for a completed job
func newActivity(id string, job *models.AgentJob) *models.Activity {
	return &models.Activity{
		ID:          id,
		UserID:      job.UserID,
		EventType:   models.ActivityCodeGenerated,
		Description: "Generated " + job.Language + " code with the agent",
		ExpGained:   models.ExpCodeGenerated,
		Metadata: map[string]interface{}{
			"job_id":   job.ID,
			"language": job.Language,
			"path":     string(job.Path),
		},
	}
}
