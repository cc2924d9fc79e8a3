package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcording/agent-orchestrator/internal/config"
	"github.com/flashcording/agent-orchestrator/internal/models"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// stores returns every Store implementation available in this environment
func stores(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"sqlite": newSQLiteStore(t)}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return out
	}
	ctx := context.Background()
	pool, err := ConnectPostgres(ctx, dbURL, 1)
	if err != nil {
		t.Logf("skipping postgres store: %v", err)
		return out
	}
	store, err := NewPostgresStore(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	out["postgres"] = store
	return out
}

func createTestUser(t *testing.T, store Store) *models.User {
	t.Helper()
	user := &models.User{
		Username:       "coder",
		Email:          "Coder-" + uuid.New().String() + "@Example.com",
		HashedPassword: "$2a$10$hash",
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestStore_Users(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := createTestUser(t, store)

			assert.NotEmpty(t, user.ID)
			assert.Equal(t, 1, user.Level)

			byEmail, err := store.GetUserByEmail(ctx, user.Email)
			require.NoError(t, err)
			assert.Equal(t, user.ID, byEmail.ID)
			assert.Equal(t, "$2a$10$hash", byEmail.HashedPassword)

			// Emails are normalized to lower case
			assert.Equal(t, byEmail.Email, user.Email)
			assert.NotContains(t, user.Email, "C")

			byID, err := store.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, user.Email, byID.Email)

			dup := &models.User{Username: "again", Email: user.Email, HashedPassword: "x"}
			err = store.CreateUser(ctx, dup)
			assert.ErrorIs(t, err, ErrUserExists)

			_, err = store.GetUserByEmail(ctx, "nobody@example.com")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_CompleteJobAwardsExp(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := createTestUser(t, store)

			job := &models.AgentJob{UserID: user.ID, Prompt: "add two numbers", Language: "python"}
			require.NoError(t, store.RecordJob(ctx, job))
			assert.NotEmpty(t, job.ID)
			assert.Equal(t, models.JobStatusProcessing, job.Status)

			job.Path = models.GenerationPathMock
			job.Code = "def add(a, b): return a + b"
			reason := "exhausted"
			job.FallbackReason = &reason

			activity, err := store.CompleteJob(ctx, job)
			require.NoError(t, err)
			assert.Equal(t, models.ActivityCodeGenerated, activity.EventType)
			assert.Equal(t, models.ExpCodeGenerated, activity.ExpGained)
			assert.Equal(t, models.JobStatusCompleted, job.Status)
			require.NotNil(t, job.CompletedAt)

			stored, err := store.GetJob(ctx, user.ID, job.ID)
			require.NoError(t, err)
			assert.Equal(t, models.JobStatusCompleted, stored.Status)
			assert.Equal(t, models.GenerationPathMock, stored.Path)
			assert.Equal(t, job.Code, stored.Code)
			require.NotNil(t, stored.FallbackReason)
			assert.Equal(t, "exhausted", *stored.FallbackReason)
			assert.NotNil(t, stored.CompletedAt)

			updated, err := store.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, 20, updated.Exp)
			assert.Equal(t, 1, updated.Level)

			activities, err := store.ListActivities(ctx, user.ID, 0)
			require.NoError(t, err)
			require.Len(t, activities, 1)
			assert.Equal(t, job.ID, activities[0].Metadata["job_id"])

			// A job completes at most once
			_, err = store.CompleteJob(ctx, job)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_LevelUp(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := createTestUser(t, store)

			for i := 0; i < 5; i++ {
				job := &models.AgentJob{UserID: user.ID, Prompt: "p", Language: "python"}
				require.NoError(t, store.RecordJob(ctx, job))
				job.Path = models.GenerationPathReal
				_, err := store.CompleteJob(ctx, job)
				require.NoError(t, err)
			}

			updated, err := store.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, 100, updated.Exp)
			assert.Equal(t, 2, updated.Level)
		})
	}
}

func TestStore_FailAndListJobs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := createTestUser(t, store)
			other := createTestUser(t, store)

			first := &models.AgentJob{UserID: user.ID, Prompt: "first", Language: "python"}
			require.NoError(t, store.RecordJob(ctx, first))
			second := &models.AgentJob{UserID: user.ID, Prompt: "second", Language: "typescript"}
			require.NoError(t, store.RecordJob(ctx, second))

			require.NoError(t, store.FailJob(ctx, first.ID, "context canceled"))
			assert.ErrorIs(t, store.FailJob(ctx, first.ID, "again"), ErrNotFound)

			jobs, err := store.ListJobs(ctx, user.ID, 10)
			require.NoError(t, err)
			require.Len(t, jobs, 2)
			assert.Equal(t, "second", jobs[0].Prompt)
			assert.Equal(t, models.JobStatusFailed, jobs[1].Status)
			require.NotNil(t, jobs[1].ErrorMessage)
			assert.Equal(t, "context canceled", *jobs[1].ErrorMessage)

			// Jobs are scoped to their owner
			_, err = store.GetJob(ctx, other.ID, first.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			otherJobs, err := store.ListJobs(ctx, other.ID, 10)
			require.NoError(t, err)
			assert.Empty(t, otherJobs)
		})
	}
}

func TestStore_Ping(t *testing.T) {
	store := newSQLiteStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, DefaultListLimit, clampLimit(-1))
	assert.Equal(t, DefaultListLimit, clampLimit(1000))
	assert.Equal(t, 5, clampLimit(5))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()
	assert.IsType(t, &SQLiteStore{}, store)
	assert.NoError(t, store.Ping(ctx))

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mysql", URL: "mysql://localhost"})
	assert.Error(t, err)
}
