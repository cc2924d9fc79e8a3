package orchestration

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/flashcording/agent-orchestrator/internal/stream"
)

// ExhaustionError reports a stream that ended cleanly without a complete event
type ExhaustionError struct {
	ChunksReceived int
}

func (e *ExhaustionError) Error() string {
	return "generation stream ended without a complete event"
}

// FallbackReason classifies a real-path failure for logs and metrics
func FallbackReason(err error) string {
	var exhausted *ExhaustionError
	var transport *stream.TransportError
	switch {
	case errors.As(err, &exhausted):
		return "exhausted"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.As(err, &transport) && transport.StatusCode >= http.StatusInternalServerError:
		return "upstream_error"
	case errors.As(err, &transport) && transport.StatusCode != 0:
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
