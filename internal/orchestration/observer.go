package orchestration

import (
	"github.com/flashcording/agent-orchestrator/internal/models"
)

// Observer receives the notifications of a generation attempt, in the order
// they were produced. The same shape is delivered for the real and mock paths.
type Observer interface {
	OnThinkingStep(step models.ThinkingStep)
	OnCodeChunk(chunk string)
	OnProgress(progress float64, message string)
	OnComplete(result *models.GenerationResult)
	OnError(err error)
}

// ObserverFuncs adapts optional callbacks to an Observer
type ObserverFuncs struct {
	ThinkingStep func(step models.ThinkingStep)
	CodeChunk    func(chunk string)
	Progress     func(progress float64, message string)
	Complete     func(result *models.GenerationResult)
	Error        func(err error)
}

func (f ObserverFuncs) OnThinkingStep(step models.ThinkingStep) {
	if f.ThinkingStep != nil {
		f.ThinkingStep(step)
	}
}

func (f ObserverFuncs) OnCodeChunk(chunk string) {
	if f.CodeChunk != nil {
		f.CodeChunk(chunk)
	}
}

func (f ObserverFuncs) OnProgress(progress float64, message string) {
	if f.Progress != nil {
		f.Progress(progress, message)
	}
}

func (f ObserverFuncs) OnComplete(result *models.GenerationResult) {
	if f.Complete != nil {
		f.Complete(result)
	}
}

func (f ObserverFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
