package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

// PostgresStore implements Store on a pgx connection pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	exp INTEGER NOT NULL DEFAULT 0,
	level INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS agent_jobs (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	prompt TEXT NOT NULL,
	language TEXT NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	fallback_reason TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_agent_jobs_user ON agent_jobs(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS activities (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	description TEXT NOT NULL,
	exp_gained INTEGER NOT NULL DEFAULT 0,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, created_at DESC);
`

// NewPostgresStore wraps an existing pool and ensures the schema exists
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{
		pool:   pool,
		tracer: otel.Tracer("history-postgres"),
	}, nil
}

// ConnectPostgres opens a pool, retrying while the database comes up
func ConnectPostgres(ctx context.Context, dbURL string, attempts int) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	for i := 0; i < attempts; i++ {
		pool, err = pgxpool.New(ctx, dbURL)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}
		log.Printf("Waiting for database... (attempt %d/%d): %v", i+1, attempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	ctx, span := s.tracer.Start(ctx, "history.create_user")
	defer span.End()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Level == 0 {
		user.Level = models.LevelForExp(user.Exp)
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, hashed_password, exp, level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		user.ID, user.Username, user.Email, user.HashedPassword, user.Exp, user.Level,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return nil
}

const userColumns = `id, username, email, hashed_password, exp, level, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.Exp, &u.Level, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (s *PostgresStore) RecordJob(ctx context.Context, job *models.AgentJob) error {
	ctx, span := s.tracer.Start(ctx, "history.record_job")
	defer span.End()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.JobStatusProcessing

	err := s.pool.QueryRow(ctx, `
		INSERT INTO agent_jobs (id, user_id, prompt, language, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		job.ID, job.UserID, job.Prompt, job.Language, job.Status,
	).Scan(&job.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert agent job: %w", err)
	}

	span.SetAttributes(attribute.String("job.id", job.ID))
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, job *models.AgentJob) (*models.Activity, error) {
	ctx, span := s.tracer.Start(ctx, "history.complete_job")
	defer span.End()

	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.path", string(job.Path)),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var completedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE agent_jobs
		SET status = $2, path = $3, code = $4, fallback_reason = $5, completed_at = NOW()
		WHERE id = $1 AND status = $6
		RETURNING completed_at`,
		job.ID, models.JobStatusCompleted, job.Path, job.Code, job.FallbackReason, models.JobStatusProcessing,
	).Scan(&completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to complete agent job: %w", err)
	}

	activity := newActivity(uuid.New().String(), job)
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO activities (id, user_id, event_type, description, exp_gained, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		activity.ID, activity.UserID, activity.EventType, activity.Description, activity.ExpGained, metadata,
	).Scan(&activity.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET exp = exp + $2, level = (exp + $2) / $3 + 1, updated_at = NOW()
		WHERE id = $1`,
		job.UserID, activity.ExpGained, models.ExpPerLevel,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to award exp: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	job.Status = models.JobStatusCompleted
	job.CompletedAt = &completedAt
	return activity, nil
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agent_jobs SET status = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1 AND status = $4`,
		jobID, models.JobStatusFailed, message, models.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark agent job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const jobColumns = `id, user_id, prompt, language, path, status, code, fallback_reason, error_message, created_at, completed_at`

func scanJob(row pgx.Row) (*models.AgentJob, error) {
	var j models.AgentJob
	var path, status string
	err := row.Scan(&j.ID, &j.UserID, &j.Prompt, &j.Language, &path, &status, &j.Code,
		&j.FallbackReason, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.Path = models.GenerationPath(path)
	j.Status = models.JobStatus(status)
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, userID, jobID string) (*models.AgentJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM agent_jobs WHERE id = $1 AND user_id = $2`, jobID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, userID string, limit int) ([]models.AgentJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM agent_jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list agent jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.AgentJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) ListActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, event_type, description, exp_gained, metadata, created_at
		FROM activities WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.EventType, &a.Description, &a.ExpGained, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode activity metadata: %w", err)
			}
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
