package gateway

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flashcording/agent-orchestrator/internal/auth"
	"github.com/flashcording/agent-orchestrator/internal/stream"
)

var sseTracer = otel.Tracer("generation-sse")

// GenerateStream godoc
// @Summary Stream code generation
// @Description Run a generation and stream every notification as server-sent events: thinking_step, code_chunk, progress, error, complete and activity records, terminated by data: [DONE]
// @Tags agent
// @Accept json
// @Produce text/event-stream
// @Param request body models.GenerationRequest true "Generation request"
// @Param X-Client-ID header string false "Editor window identifier"
// @Success 200 {string} string "SSE stream"
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /agent/generate/stream [post]
func (h *Handler) GenerateStream(c *gin.Context) {
	ctx, span := sseTracer.Start(c.Request.Context(), "gateway.generate_stream")
	defer span.End()

	req, ok := bindGenerationRequest(c)
	if !ok {
		return
	}

	userID, _ := auth.UserID(c)
	key := sessionKey(c, userID)
	session := h.sessions.Get(key)
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("session.key", key),
	)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	enc := stream.NewEncoder(c.Writer)
	writeFailed := false
	send := func(n Notification) {
		if writeFailed {
			return
		}
		if err := enc.Encode(n); err != nil {
			// The client went away; the request context cancels the attempt
			writeFailed = true
			log.Printf(`{"level":"warn","message":"SSE write failed","session":"%s","error":%q}`, key, err.Error())
			return
		}
		c.Writer.Flush()
	}

	resp, err := h.run(ctx, session, userID, req, notifier{send: send})
	if err != nil {
		span.RecordError(err)
		if n, ok := terminalError(err); ok {
			send(n)
		}
	} else if resp.ExpGained > 0 {
		send(activityNotification(resp))
	}

	if !writeFailed {
		if err := enc.Done(); err == nil {
			c.Writer.Flush()
		}
	}
}
