package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

// SQLiteStore implements Store on an embedded SQLite database for local development
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			exp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agent_jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			language TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			fallback_reason TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			description TEXT NOT NULL,
			exp_gained INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_jobs_user ON agent_jobs(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Level == 0 {
		user.Level = models.LevelForExp(user.Exp)
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, hashed_password, exp, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.HashedPassword, user.Exp, user.Level, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.Exp, &u.Level, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (s *SQLiteStore) RecordJob(ctx context.Context, job *models.AgentJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.JobStatusProcessing
	job.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_jobs (id, user_id, prompt, language, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.Prompt, job.Language, job.Status, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, job *models.AgentJob) (*models.Activity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	completedAt := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE agent_jobs
		SET status = ?, path = ?, code = ?, fallback_reason = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		models.JobStatusCompleted, job.Path, job.Code, job.FallbackReason, completedAt,
		job.ID, models.JobStatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete agent job: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	activity := newActivity(uuid.New().String(), job)
	activity.CreatedAt = completedAt
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, event_type, description, exp_gained, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.UserID, activity.EventType, activity.Description, activity.ExpGained,
		string(metadata), activity.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET exp = exp + ?, level = (exp + ?) / ? + 1, updated_at = ?
		WHERE id = ?`,
		activity.ExpGained, activity.ExpGained, models.ExpPerLevel, completedAt, job.UserID,
	); err != nil {
		return nil, fmt.Errorf("failed to award exp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	job.Status = models.JobStatusCompleted
	job.CompletedAt = &completedAt
	return activity, nil
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID, message string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agent_jobs SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		models.JobStatusFailed, message, time.Now().UTC(), jobID, models.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark agent job failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanJob(row rowScanner) (*models.AgentJob, error) {
	var j models.AgentJob
	var path, status string
	var fallbackReason, errorMessage sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&j.ID, &j.UserID, &j.Prompt, &j.Language, &path, &status, &j.Code,
		&fallbackReason, &errorMessage, &j.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	j.Path = models.GenerationPath(path)
	j.Status = models.JobStatus(status)
	if fallbackReason.Valid {
		j.FallbackReason = &fallbackReason.String
	}
	if errorMessage.Valid {
		j.ErrorMessage = &errorMessage.String
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, userID, jobID string) (*models.AgentJob, error) {
	job, err := s.scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM agent_jobs WHERE id = ? AND user_id = ?`, jobID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent job: %w", err)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, userID string, limit int) ([]models.AgentJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM agent_jobs WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list agent jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.AgentJob{}
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) ListActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, event_type, description, exp_gained, metadata, created_at
		FROM activities WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.EventType, &a.Description, &a.ExpGained, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode activity metadata: %w", err)
			}
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
