package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flashcording/agent-orchestrator/internal/auth"
	"github.com/flashcording/agent-orchestrator/internal/history"
	"github.com/flashcording/agent-orchestrator/internal/models"
)

// Client message types on the generation socket
const (
	SocketMessageGenerate = "generate"
	SocketMessageCancel   = "cancel"
)

const socketWriteTimeout = 10 * time.Second

// socketMessage is a client->server message
type socketMessage struct {
	Type string                    `json:"type"`
	Data *models.GenerationRequest `json:"data,omitempty"`
}

// GenerationSocket serves generations over a WebSocket. Each generate message
// starts a new attempt on the connection's session, superseding the previous one.
type GenerationSocket struct {
	runner
	jwtManager *auth.JWTManager
	tracer     trace.Tracer
	upgrader   websocket.Upgrader
}

// NewGenerationSocket creates a WebSocket generation endpoint
func NewGenerationSocket(sessions *SessionRegistry, store history.Store, jwtManager *auth.JWTManager) *GenerationSocket {
	return &GenerationSocket{
		runner: runner{
			sessions: sessions,
			recorder: history.NewRecorder(store),
		},
		jwtManager: jwtManager,
		tracer:     otel.Tracer("generation-socket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				log.Printf("WebSocket connection from origin: %s", r.Header.Get("Origin"))
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Stream handles WebSocket /api/ws/agent/generate
// @Summary Stream code generation over WebSocket
// @Description Send {"type":"generate","data":GenerationRequest} to start an attempt and {"type":"cancel"} to stop it. The server pushes the same notifications as the SSE endpoint.
// @Tags agent
// @Param token query string false "JWT for browser clients that cannot set headers"
// @Param client_id query string false "Editor window identifier"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/agent/generate [get]
func (s *GenerationSocket) Stream(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "generation_socket.stream")
	defer span.End()

	userID, err := s.validateJWTAndGetUserID(c)
	if err != nil {
		span.RecordError(err)
		log.Printf("JWT validation failed: %v", err)
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Unauthorized")
		return
	}

	key := sessionKey(c, userID)
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("session.key", key),
	)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Generation socket opened for session: %s", key)
	s.serve(ctx, conn, key, userID)
	log.Printf("Generation socket closed for session: %s", key)
}

// validateJWTAndGetUserID validates the JWT and returns the user ID
func (s *GenerationSocket) validateJWTAndGetUserID(c *gin.Context) (string, error) {
	token := auth.TokenFromRequest(c)
	if token == "" {
		return "", fmt.Errorf("missing JWT token")
	}

	claims, err := s.jwtManager.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return "", fmt.Errorf("invalid JWT: %w", err)
	}

	return claims.UserID, nil
}

// serve reads client messages until the connection closes. Attempts are
// started in arrival order here and driven in their own goroutines, so a
// later generate message always supersedes an earlier one.
func (s *GenerationSocket) serve(ctx context.Context, conn *websocket.Conn, key, userID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	send := func(n Notification) {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		if err := conn.WriteJSON(n); err != nil {
			log.Printf("Failed to send %s notification for session %s: %v", n.Type, key, err)
		}
	}
	sendError := func(message string) {
		send(Notification{Type: NotificationError, Data: ErrorData{Error: message, Terminal: true}})
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var msg socketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Client connection closed normally for session: %s", key)
			} else {
				log.Printf("Client connection read error for session %s: %v", key, err)
			}
			// Stop any attempt this connection started before waiting on it
			cancel()
			return
		}

		switch msg.Type {
		case SocketMessageGenerate:
			if msg.Data == nil {
				sendError("generate message requires a request")
				continue
			}
			req := *msg.Data
			// Resolved per message so an idle connection follows registry eviction
			pending, err := s.sessions.Get(key).Start(ctx, req, notifier{send: send})
			if err != nil {
				sendError(err.Error())
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := s.drive(ctx, pending, userID, req)
				if err != nil {
					if n, ok := terminalError(err); ok {
						send(n)
					}
					return
				}
				if resp.ExpGained > 0 {
					send(activityNotification(resp))
				}
			}()

		case SocketMessageCancel:
			if session, ok := s.sessions.Lookup(key); ok {
				session.Cancel()
			}

		default:
			sendError(fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}
