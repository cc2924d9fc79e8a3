// Package steps tracks the predeclared thinking pipeline shown while code is
// being generated.
package steps

import (
	"log"
	"sort"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

// StreamCeiling is the highest progress value the step pipeline can report.
// The remainder is reserved for streaming the code and completing.
const StreamCeiling = 80.0

// Titles of the default pipeline, in order
var defaultTitles = []string{
	"Analyzing project context",
	"Reading Git history",
	"Planning implementation",
	"Generating code with LLM",
	"Formatting and validating",
}

// MockDetails are the canned details attached to each default step on completion
var MockDetails = []string{
	"Found 3 related files in project structure",
	"Analyzed last 5 commits for context",
	"Generated implementation plan with 4 steps",
	"LLM processing completed successfully",
	"Code formatted and validated",
}

// DefaultSequence returns a fresh copy of the five predeclared steps, all pending
func DefaultSequence() []models.ThinkingStep {
	seq := make([]models.ThinkingStep, len(defaultTitles))
	for i, title := range defaultTitles {
		seq[i] = models.ThinkingStep{Step: i + 1, Title: title, Status: models.StepStatusPending}
	}
	return seq
}

// Reconciler folds partial step updates into an ordered step list.
// It has a single writer; callers must not mutate it concurrently.
type Reconciler struct {
	steps []models.ThinkingStep
	index map[int]int
}

// NewReconciler creates a reconciler over the given predeclared steps
func NewReconciler(seq []models.ThinkingStep) *Reconciler {
	ordered := make([]models.ThinkingStep, len(seq))
	copy(ordered, seq)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Step < ordered[j].Step })

	index := make(map[int]int, len(ordered))
	for i, s := range ordered {
		index[s.Step] = i
	}
	return &Reconciler{steps: ordered, index: index}
}

// Apply merges the provided fields of update into the step with the same
// number. Unknown step numbers are ignored and false is returned. A status
// that would move the step backwards through its lifecycle is dropped; the
// other fields of the update still merge.
func (r *Reconciler) Apply(update models.StepUpdate) (models.ThinkingStep, bool) {
	i, ok := r.index[update.Step]
	if !ok {
		return models.ThinkingStep{}, false
	}

	s := &r.steps[i]
	if update.Title != nil {
		s.Title = *update.Title
	}
	if update.Status != nil {
		if update.Status.Rank() < s.Status.Rank() {
			log.Printf(`{"level":"warn","message":"Ignoring step status regression","step":%d,"from":"%s","to":"%s"}`,
				s.Step, s.Status, *update.Status)
		} else {
			s.Status = *update.Status
		}
	}
	if update.Details != nil {
		s.Details = *update.Details
	}
	return *s, true
}

// Step returns the current state of the step with the given number
func (r *Reconciler) Step(number int) (models.ThinkingStep, bool) {
	i, ok := r.index[number]
	if !ok {
		return models.ThinkingStep{}, false
	}
	return r.steps[i], true
}

// Mark sets the status (and details, when non-empty) of the step at position i
func (r *Reconciler) Mark(i int, status models.StepStatus, details string) (models.ThinkingStep, bool) {
	if i < 0 || i >= len(r.steps) {
		return models.ThinkingStep{}, false
	}
	update := models.StepUpdate{Step: r.steps[i].Step, Status: &status}
	if details != "" {
		update.Details = &details
	}
	return r.Apply(update)
}

// Steps returns a copy of the step list in ascending step order
func (r *Reconciler) Steps() []models.ThinkingStep {
	out := make([]models.ThinkingStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// Len returns the number of predeclared steps
func (r *Reconciler) Len() int {
	return len(r.steps)
}

// furthest returns the position of the last step that has left pending, or -1
func (r *Reconciler) furthest() int {
	for i := len(r.steps) - 1; i >= 0; i-- {
		if r.steps[i].Status != models.StepStatusPending {
			return i
		}
	}
	return -1
}

// Progress reports (furthest-advanced position + 1) / total scaled into [0, StreamCeiling]
func (r *Reconciler) Progress() float64 {
	if len(r.steps) == 0 {
		return 0
	}
	return float64(r.furthest()+1) * StreamCeiling / float64(len(r.steps))
}

// Current returns the title of the furthest-advanced step
func (r *Reconciler) Current() string {
	if i := r.furthest(); i >= 0 {
		return r.steps[i].Title
	}
	return ""
}
