// Package mock produces deterministic, offline code generations used when the
// LLM service is disabled or unavailable.
package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/steps"
)

// Progress reported once all steps are done and the code starts streaming
const streamingProgress = 90.0

// Default pacing
const (
	DefaultStepDelay = 1 * time.Second
	DefaultWordDelay = 50 * time.Millisecond
)

// Emitter receives the notifications produced while the mock runs
type Emitter interface {
	Step(step models.ThinkingStep)
	Progress(value float64, message string)
	Chunk(chunk string)
}

// Generator replays the thinking pipeline and reveals a canned artifact
type Generator struct {
	StepDelay time.Duration
	WordDelay time.Duration
}

// NewGenerator creates a generator with the given pacing
func NewGenerator(stepDelay, wordDelay time.Duration) *Generator {
	return &Generator{StepDelay: stepDelay, WordDelay: wordDelay}
}

// Run drives every unfinished step of rec through processing and completed, then streams
// the canned artifact for req's language word by word. The returned result's
// code is exactly Template(language, prompt).
func (g *Generator) Run(ctx context.Context, req models.GenerationRequest, rec *steps.Reconciler, emit Emitter) (*models.GenerationResult, error) {
	total := rec.Len()
	current := rec.Steps()
	for i := 0; i < total; i++ {
		// Steps already completed by an earlier real attempt never regress
		if current[i].Status == models.StepStatusCompleted {
			continue
		}

		step := current[i]
		if step.Status != models.StepStatusProcessing {
			step, _ = rec.Mark(i, models.StepStatusProcessing, "")
			emit.Step(step)
		}
		emit.Progress(float64(i+1)*steps.StreamCeiling/float64(total), step.Title)

		if err := sleep(ctx, g.StepDelay); err != nil {
			return nil, fmt.Errorf("mock generation interrupted at step %d: %w", step.Step, err)
		}

		details := ""
		if i < len(steps.MockDetails) {
			details = steps.MockDetails[i]
		}
		step, _ = rec.Mark(i, models.StepStatusCompleted, details)
		emit.Step(step)
	}

	emit.Progress(streamingProgress, "Streaming response...")

	language := ResolveLanguage(req.TargetLanguage())
	code := Template(language, req.Prompt)

	words := strings.Split(code, " ")
	for i, word := range words {
		if err := sleep(ctx, g.WordDelay); err != nil {
			return nil, fmt.Errorf("mock streaming interrupted: %w", err)
		}
		if i > 0 {
			word = " " + word
		}
		emit.Chunk(word)
	}

	return &models.GenerationResult{
		Code:         code,
		Language:     language,
		Explanation:  "Generated offline from the built-in " + language + " template.",
		FilesChanged: []models.FileChange{},
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
