package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

func status(s models.StepStatus) *models.StepStatus { return &s }
func text(s string) *string { return &s }

func TestDefaultSequence(t *testing.T) {
	seq := DefaultSequence()
	require.Len(t, seq, 5)
	for i, s := range seq {
		assert.Equal(t, i+1, s.Step)
		assert.Equal(t, models.StepStatusPending, s.Status)
		assert.Empty(t, s.Details)
	}
	assert.Equal(t, "Analyzing project context", seq[0].Title)
	assert.Equal(t, "Formatting and validating", seq[4].Title)
	assert.Len(t, MockDetails, len(seq))

	// Each call hands out an independent copy
	seq[0].Status = models.StepStatusCompleted
	assert.Equal(t, models.StepStatusPending, DefaultSequence()[0].Status)
}

func TestReconciler_ApplyMergesOnlyProvidedFields(t *testing.T) {
	r := NewReconciler(DefaultSequence())

	step, ok := r.Apply(models.StepUpdate{Step: 2, Status: status(models.StepStatusProcessing)})
	require.True(t, ok)
	assert.Equal(t, "Reading Git history", step.Title)
	assert.Equal(t, models.StepStatusProcessing, step.Status)

	step, ok = r.Apply(models.StepUpdate{Step: 2, Details: text("Analyzed 12 commits")})
	require.True(t, ok)
	assert.Equal(t, models.StepStatusProcessing, step.Status)
	assert.Equal(t, "Analyzed 12 commits", step.Details)

	step, ok = r.Apply(models.StepUpdate{Step: 2, Title: text("Reading history"), Status: status(models.StepStatusCompleted)})
	require.True(t, ok)
	assert.Equal(t, "Reading history", step.Title)
	assert.Equal(t, "Analyzed 12 commits", step.Details)
}

func TestReconciler_UnknownStepIsNoop(t *testing.T) {
	r := NewReconciler(DefaultSequence())
	before := r.Steps()

	updates := []models.StepUpdate{
		{Step: 0, Status: status(models.StepStatusCompleted)},
		{Step: 6, Title: text("Deploying")},
		{Step: -1, Details: text("nope")},
		{Step: 99, Status: status(models.StepStatusProcessing), Details: text("x")},
	}
	for _, u := range updates {
		_, ok := r.Apply(u)
		assert.False(t, ok)
	}

	assert.Equal(t, before, r.Steps())
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, 0.0, r.Progress())
}

func TestReconciler_OrdersBySteps(t *testing.T) {
	r := NewReconciler([]models.ThinkingStep{
		{Step: 3, Title: "c", Status: models.StepStatusPending},
		{Step: 1, Title: "a", Status: models.StepStatusPending},
		{Step: 2, Title: "b", Status: models.StepStatusPending},
	})

	var titles []string
	for _, s := range r.Steps() {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"a", "b", "c"}, titles)
}

func TestReconciler_Progress(t *testing.T) {
	r := NewReconciler(DefaultSequence())
	assert.Equal(t, 0.0, r.Progress())
	assert.Empty(t, r.Current())

	r.Apply(models.StepUpdate{Step: 1, Status: status(models.StepStatusProcessing)})
	assert.InDelta(t, 16.0, r.Progress(), 1e-9)
	assert.Equal(t, "Analyzing project context", r.Current())

	r.Apply(models.StepUpdate{Step: 3, Status: status(models.StepStatusCompleted)})
	assert.InDelta(t, 48.0, r.Progress(), 1e-9)
	assert.Equal(t, "Planning implementation", r.Current())

	for i := 0; i < r.Len(); i++ {
		r.Mark(i, models.StepStatusCompleted, "")
	}
	// The last streamed step never reaches 100
	assert.InDelta(t, StreamCeiling, r.Progress(), 1e-9)
}

func TestReconciler_Mark(t *testing.T) {
	r := NewReconciler(DefaultSequence())

	step, ok := r.Mark(0, models.StepStatusCompleted, MockDetails[0])
	require.True(t, ok)
	assert.Equal(t, MockDetails[0], step.Details)

	step, ok = r.Mark(1, models.StepStatusProcessing, "")
	require.True(t, ok)
	assert.Empty(t, step.Details)

	_, ok = r.Mark(5, models.StepStatusCompleted, "")
	assert.False(t, ok)
	_, ok = r.Mark(-1, models.StepStatusCompleted, "")
	assert.False(t, ok)
}

func TestReconciler_StepsReturnsCopy(t *testing.T) {
	r := NewReconciler(DefaultSequence())
	snapshot := r.Steps()
	snapshot[0].Status = models.StepStatusCompleted

	assert.Equal(t, models.StepStatusPending, r.Steps()[0].Status)
}

func TestReconciler_StatusNeverRegresses(t *testing.T) {
	r := NewReconciler(DefaultSequence())

	_, ok := r.Apply(models.StepUpdate{Step: 1, Status: status(models.StepStatusCompleted)})
	require.True(t, ok)

	tests := []struct {
		name   string
		update models.StepUpdate
	}{
		{name: "completed to pending", update: models.StepUpdate{Step: 1, Status: status(models.StepStatusPending)}},
		{name: "completed to processing", update: models.StepUpdate{Step: 1, Status: status(models.StepStatusProcessing)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, ok := r.Apply(tt.update)
			require.True(t, ok)
			assert.Equal(t, models.StepStatusCompleted, step.Status)
		})
	}

	// Other fields of a regressing update still merge
	step, ok := r.Apply(models.StepUpdate{Step: 1, Status: status(models.StepStatusPending), Details: text("Found 7 files")})
	require.True(t, ok)
	assert.Equal(t, models.StepStatusCompleted, step.Status)
	assert.Equal(t, "Found 7 files", step.Details)
	assert.Equal(t, 16.0, r.Progress())

	// Processing may not fall back to pending either
	_, ok = r.Apply(models.StepUpdate{Step: 2, Status: status(models.StepStatusProcessing)})
	require.True(t, ok)
	step, _ = r.Apply(models.StepUpdate{Step: 2, Status: status(models.StepStatusPending)})
	assert.Equal(t, models.StepStatusProcessing, step.Status)
}

func TestReconciler_Step(t *testing.T) {
	r := NewReconciler(DefaultSequence())
	_, _ = r.Apply(models.StepUpdate{Step: 3, Status: status(models.StepStatusProcessing)})

	step, ok := r.Step(3)
	require.True(t, ok)
	assert.Equal(t, "Planning implementation", step.Title)
	assert.Equal(t, models.StepStatusProcessing, step.Status)

	_, ok = r.Step(42)
	assert.False(t, ok)
}
