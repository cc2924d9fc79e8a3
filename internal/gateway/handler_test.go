package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/flashcording/agent-orchestrator/internal/auth"
	"github.com/flashcording/agent-orchestrator/internal/history"
	"github.com/flashcording/agent-orchestrator/internal/mock"
	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/orchestration"
)

const (
	testEmail    = "coder@example.com"
	testPassword = "password123"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminEmail = "lead@example.com"

// testEnv wires the gateway against a sqlite store and a stand-in LLM service
type testEnv struct {
	router     *gin.Engine
	store      *history.SQLiteStore
	user       *models.User
	token      string
	mockFlag   *orchestration.MockModeFlag
	sessions   *SessionRegistry
	jwtManager *auth.JWTManager
}

// envOptions customises newTestEnvWith
type envOptions struct {
	llm        http.HandlerFunc
	mockForced bool
	generator  *mock.Generator
	limits     SessionLimits
}

func newTestEnv(t *testing.T, llmHandler http.HandlerFunc, mockForced bool) *testEnv {
	t.Helper()
	return newTestEnvWith(t, envOptions{llm: llmHandler, mockForced: mockForced})
}

func newTestEnvWith(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	llmHandler := opts.llm
	if llmHandler == nil {
		llmHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
	llm := httptest.NewServer(llmHandler)
	t.Cleanup(llm.Close)

	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Username: "coder", Email: testEmail, HashedPassword: string(hash)}
	require.NoError(t, store.CreateUser(context.Background(), user))

	jwtManager, err := auth.NewJWTManager("test-secret-key-for-testing-purposes-only")
	require.NoError(t, err)
	token, _, err := jwtManager.GenerateToken(context.Background(), user.ID, user.Username, user.Email, []string{"user"}, time.Hour)
	require.NoError(t, err)

	client := orchestration.NewLLMClient(llm.URL, 5*time.Second)
	generator := opts.generator
	if generator == nil {
		generator = mock.NewGenerator(0, 0)
	}
	flag := orchestration.NewMockModeFlag(opts.mockForced)
	orchestrator := orchestration.NewOrchestrator(client, generator, flag, nil)
	sessions := NewSessionRegistry(orchestrator, opts.limits)

	handler := NewHandler(Deps{
		LLM:         client,
		Sessions:    sessions,
		Store:       store,
		JWTManager:  jwtManager,
		MockFlag:    flag,
		AdminEmails: []string{testAdminEmail},
	})
	socket := NewGenerationSocket(sessions, store, jwtManager)

	router := gin.New()
	RegisterRoutes(router, handler, socket, jwtManager)

	return &testEnv{
		router:     router,
		store:      store,
		user:       user,
		token:      token,
		mockFlag:   flag,
		sessions:   sessions,
		jwtManager: jwtManager,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.token, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// sseRecord is one decoded data: record of the gateway stream
type sseRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func parseSSE(t *testing.T, body string) ([]sseRecord, bool) {
	t.Helper()
	var records []sseRecord
	done := false
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			done = true
			continue
		}
		var rec sseRecord
		require.NoError(t, json.Unmarshal([]byte(payload), &rec))
		records = append(records, rec)
	}
	return records, done
}

func recordTypes(records []sseRecord) []string {
	types := make([]string, 0, len(records))
	for _, r := range records {
		types = append(types, r.Type)
	}
	return types
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil, true)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{name: "valid credentials", body: models.LoginRequest{Email: testEmail, Password: testPassword}, expectedStatus: http.StatusOK},
		{name: "wrong password", body: models.LoginRequest{Email: testEmail, Password: "wrong-password1"}, expectedStatus: http.StatusUnauthorized},
		{name: "unknown user", body: models.LoginRequest{Email: "nobody@example.com", Password: testPassword}, expectedStatus: http.StatusUnauthorized},
		{name: "invalid body", body: map[string]string{"email": "not-an-email"}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/auth/login", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var resp models.LoginResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, env.user.ID, resp.User.ID)
				assert.Equal(t, 1, resp.User.Level)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.doAs(t, "", http.MethodPost, "/api/auth/register", models.RegisterRequest{
		Username: "newcomer",
		Email:    "Newcomer@Example.com",
		Password: "long-enough",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, "newcomer", resp.User.Username)
	assert.Equal(t, "newcomer@example.com", resp.User.Email)
	assert.Equal(t, 1, resp.User.Level)

	claims, err := env.jwtManager.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, []string{auth.RoleUser}, claims.Roles)

	// The new account can log in and use protected routes
	w = env.doAs(t, "", http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "newcomer@example.com", Password: "long-enough"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.doAs(t, resp.Token, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister_Rejects(t *testing.T) {
	env := newTestEnv(t, nil, true)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "duplicate email",
			body:           models.RegisterRequest{Username: "again", Email: testEmail, Password: "password456"},
			expectedStatus: http.StatusConflict,
			expectedCode:   models.ErrCodeConflict,
		},
		{
			name:           "short password",
			body:           models.RegisterRequest{Username: "short", Email: "short@example.com", Password: "abc"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.ErrCodeInvalidRequest,
		},
		{
			name:           "invalid email",
			body:           models.RegisterRequest{Username: "bad", Email: "not-an-email", Password: "password456"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doAs(t, "", http.MethodPost, "/api/auth/register", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestLogin_WithoutStore(t *testing.T) {
	jwtManager, err := auth.NewJWTManager("secret")
	require.NoError(t, err)
	h := NewHandler(Deps{JWTManager: jwtManager})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"coder@example.com","password":"password123"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil, true)

	for _, path := range []string{"/api/agent/jobs", "/api/settings", "/api/auth/me"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestGenerateStream_Mock(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodPost, "/api/agent/generate/stream",
		models.GenerationRequest{Prompt: "add two numbers", Language: "python"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasSuffix(w.Body.String(), "data: [DONE]\n\n"))

	records, done := parseSSE(t, w.Body.String())
	require.True(t, done)
	types := recordTypes(records)

	for i := 0; i < 5; i++ {
		assert.Equal(t, NotificationThinkingStep, types[i])
	}
	assert.Equal(t, NotificationActivity, types[len(types)-1])
	assert.Equal(t, NotificationComplete, types[len(types)-2])
	assert.NotContains(t, types, NotificationError)

	var code strings.Builder
	var lastProgress float64
	for _, rec := range records {
		switch rec.Type {
		case NotificationCodeChunk:
			var chunk string
			require.NoError(t, json.Unmarshal(rec.Data, &chunk))
			code.WriteString(chunk)
		case NotificationProgress:
			var p ProgressData
			require.NoError(t, json.Unmarshal(rec.Data, &p))
			assert.GreaterOrEqual(t, p.Progress, lastProgress)
			lastProgress = p.Progress
		}
	}
	assert.Equal(t, mock.Template("python", "add two numbers"), code.String())
	assert.Equal(t, float64(100), lastProgress)

	var result models.GenerationResult
	require.NoError(t, json.Unmarshal(records[len(records)-2].Data, &result))
	assert.Equal(t, code.String(), result.Code)

	var activity ActivityData
	require.NoError(t, json.Unmarshal(records[len(records)-1].Data, &activity))
	assert.Equal(t, models.ExpCodeGenerated, activity.ExpGained)

	// The attempt is recorded and the user earned experience
	jobs, err := env.store.ListJobs(context.Background(), env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, activity.JobID, jobs[0].ID)
	assert.Equal(t, models.JobStatusCompleted, jobs[0].Status)
	assert.Equal(t, models.GenerationPathMock, jobs[0].Path)

	user, err := env.store.GetUser(context.Background(), env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, user.Exp)
}

func TestGenerateStream_FallbackAnnouncesError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model crashed"))
	}, false)

	w := env.do(t, http.MethodPost, "/api/agent/generate/stream", models.GenerationRequest{Prompt: "x"})
	require.Equal(t, http.StatusOK, w.Code)

	records, done := parseSSE(t, w.Body.String())
	require.True(t, done)

	var errorsSeen []ErrorData
	for _, rec := range records {
		if rec.Type == NotificationError {
			var e ErrorData
			require.NoError(t, json.Unmarshal(rec.Data, &e))
			errorsSeen = append(errorsSeen, e)
		}
	}
	require.Len(t, errorsSeen, 1)
	assert.False(t, errorsSeen[0].Terminal)
	assert.Equal(t, "upstream_error", errorsSeen[0].Reason)
	assert.Contains(t, recordTypes(records), NotificationComplete)

	jobs, err := env.store.ListJobs(context.Background(), env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].FallbackReason)
	assert.Equal(t, "upstream_error", *jobs[0].FallbackReason)
}

func TestGenerateStream_RealPath(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"type":"thinking_step","data":{"step":1,"status":"completed","details":"ok"}}` + "\n\n"))
		w.Write([]byte(`data: {"type":"code_chunk","data":"print(1)"}` + "\n\n"))
		w.Write([]byte(`data: {"type":"complete","data":{"code":"print(1)","language":"python","files_changed":[]}}` + "\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}, false)

	w := env.do(t, http.MethodPost, "/api/agent/generate/stream", models.GenerationRequest{Prompt: "print one"})
	require.Equal(t, http.StatusOK, w.Code)

	records, done := parseSSE(t, w.Body.String())
	require.True(t, done)
	assert.Equal(t, []string{
		NotificationThinkingStep, NotificationThinkingStep, NotificationThinkingStep, NotificationThinkingStep, NotificationThinkingStep,
		NotificationThinkingStep, NotificationProgress,
		NotificationCodeChunk,
		NotificationProgress, NotificationComplete,
		NotificationActivity,
	}, recordTypes(records))

	jobs, err := env.store.ListJobs(context.Background(), env.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.GenerationPathReal, jobs[0].Path)
	assert.Nil(t, jobs[0].FallbackReason)
}

func TestGenerate_RejectsEmptyPrompt(t *testing.T) {
	env := newTestEnv(t, nil, true)

	bodies := map[string]interface{}{
		"blank":   models.GenerationRequest{Prompt: "   "},
		"empty":   models.GenerationRequest{Prompt: ""},
		"missing": map[string]string{"language": "python"},
	}

	for _, path := range []string{"/api/agent/generate/stream", "/api/agent/generate"} {
		for name, body := range bodies {
			w := env.do(t, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, path+" "+name)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, models.ErrCodeValidationFailed, resp.Code, path+" "+name)
			assert.Equal(t, "must not be empty", resp.Details["prompt"], path+" "+name)
		}
	}

	jobs, err := env.store.ListJobs(context.Background(), env.user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGenerateCode(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodPost, "/api/agent/generate",
		models.GenerationRequest{Prompt: "build an api", Language: "typescript"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp GenerationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.GenerationPathMock, resp.Path)
	assert.NotEmpty(t, resp.AttemptID)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, models.ExpCodeGenerated, resp.ExpGained)
	assert.Empty(t, resp.FallbackReason)
	require.NotNil(t, resp.Result)
	assert.Equal(t, mock.Template("typescript", "build an api"), resp.Result.Code)

	// History endpoints
	w = env.do(t, http.MethodGet, "/api/agent/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []models.AgentJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)

	w = env.do(t, http.MethodGet, "/api/agent/jobs/"+resp.JobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/agent/jobs/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/activities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var activities []models.Activity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activities))
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActivityCodeGenerated, activities[0].EventType)

	w = env.do(t, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.UserInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, 20, me.Exp)

	// Session snapshot of the finished attempt
	w = env.do(t, http.MethodGet, "/api/agent/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state orchestration.AttemptState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, resp.AttemptID, state.AttemptID)
	assert.True(t, state.Done)
	assert.Equal(t, float64(100), state.Progress)
	assert.Equal(t, resp.Result.Code, state.Code)
}

func TestSessionsArePerClient(t *testing.T) {
	env := newTestEnv(t, nil, true)

	for _, clientID := range []string{"window-a", "window-b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/agent/generate",
			strings.NewReader(`{"prompt":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+env.token)
		req.Header.Set(ClientIDHeader, clientID)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2, env.sessions.Len())
	_, ok := env.sessions.Lookup(env.user.ID + "/window-a")
	assert.True(t, ok)

	// Cancelling an idle session succeeds
	w := env.do(t, http.MethodDelete, "/api/agent/session", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mock_data":true}`, w.Body.String())

	// Plain users cannot flip the flag for everyone
	w = env.do(t, http.MethodPut, "/api/settings", Settings{MockData: false})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, env.mockFlag.Enabled())

	admin := env.doAs(t, "", http.MethodPost, "/api/auth/register", models.RegisterRequest{
		Username: "lead",
		Email:    testAdminEmail,
		Password: "lead-password",
	})
	require.Equal(t, http.StatusCreated, admin.Code)
	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(admin.Body.Bytes(), &login))

	w = env.doAs(t, login.Token, http.MethodPut, "/api/settings", Settings{MockData: false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mock_data":false}`, w.Body.String())
	assert.False(t, env.mockFlag.Enabled())
}

func TestTemplatesArePublic(t *testing.T) {
	env := newTestEnv(t, nil, true)

	req := httptest.NewRequest(http.MethodGet, "/api/agent/templates", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var templates []mock.PromptTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	assert.Len(t, templates, len(mock.PromptTemplates))
}

func TestLLMPassthrough(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/validate":
			w.Write([]byte(`{"valid":true}`))
		case "/api/context/analyze":
			w.Write([]byte(`{"files":["a.py"],"git_commits":3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, true)

	w := env.do(t, http.MethodPost, "/api/agent/validate", ValidateCodeRequest{Code: "x = 1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/agent/context", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analysis orchestration.ProjectAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, 3, analysis.GitCommits)

	w = env.do(t, http.MethodPost, "/api/agent/validate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMPassthrough_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodGet, "/api/agent/context", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeUpstreamFailed)
}

func TestRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil, true)

	w := env.do(t, http.MethodPost, "/api/auth/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	// The refreshed token authenticates like the first one
	env.token = resp.Token
	w = env.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
