package gateway

import (
	"context"
	"errors"

	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/orchestration"
)

// Notification types pushed to UI clients. thinking_step, code_chunk and
// complete share the wire names of the LLM service stream.
const (
	NotificationThinkingStep = models.EventTypeThinkingStep
	NotificationCodeChunk    = models.EventTypeCodeChunk
	NotificationComplete     = models.EventTypeComplete
	NotificationProgress     = "progress"
	NotificationError        = "error"
)

// Notification is one observer callback re-encoded for the wire
type Notification struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ProgressData is the payload of a progress notification
type ProgressData struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// ErrorData is the payload of an error notification. Non-terminal errors
// announce a fallback to the mock generator; a terminal error ends the attempt.
type ErrorData struct {
	Error    string `json:"error"`
	Reason   string `json:"reason,omitempty"`
	Terminal bool   `json:"terminal"`
}

// notifier adapts orchestration observer callbacks to a send function
type notifier struct {
	send func(Notification)
}

var _ orchestration.Observer = notifier{}

func (n notifier) OnThinkingStep(step models.ThinkingStep) {
	n.send(Notification{Type: NotificationThinkingStep, Data: step})
}

func (n notifier) OnCodeChunk(chunk string) {
	n.send(Notification{Type: NotificationCodeChunk, Data: chunk})
}

func (n notifier) OnProgress(progress float64, message string) {
	n.send(Notification{Type: NotificationProgress, Data: ProgressData{Progress: progress, Message: message}})
}

func (n notifier) OnComplete(result *models.GenerationResult) {
	n.send(Notification{Type: NotificationComplete, Data: result})
}

func (n notifier) OnError(err error) {
	n.send(Notification{Type: NotificationError, Data: ErrorData{
		Error:  err.Error(),
		Reason: orchestration.FallbackReason(err),
	}})
}

// terminalError builds the notification for an attempt that produced no result.
// It returns false for cancellations, which the client either asked for or
// will never see.
func terminalError(err error) (Notification, bool) {
	if errors.Is(err, context.Canceled) {
		return Notification{}, false
	}
	return Notification{Type: NotificationError, Data: ErrorData{Error: err.Error(), Terminal: true}}, true
}
