package gateway

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/flashcording/agent-orchestrator/internal/auth"
	"github.com/flashcording/agent-orchestrator/internal/history"
	"github.com/flashcording/agent-orchestrator/internal/mock"
	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/orchestration"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	runner
	llm        orchestration.LLMClientInterface
	store      history.Store
	jwtManager *auth.JWTManager
	tokenTTL   time.Duration
	mockFlag   *orchestration.MockModeFlag
	admins     map[string]bool
}

// Deps groups the collaborators of the gateway handlers. Store may be nil,
// in which case login and history endpoints report the database as unavailable.
type Deps struct {
	LLM        orchestration.LLMClientInterface
	Sessions   *SessionRegistry
	Store      history.Store
	JWTManager *auth.JWTManager
	TokenTTL   time.Duration
	MockFlag   *orchestration.MockModeFlag

	// AdminEmails receive the admin role at login and may change settings
	AdminEmails []string
}

// NewHandler creates a new gateway handler
func NewHandler(deps Deps) *Handler {
	if deps.TokenTTL <= 0 {
		deps.TokenTTL = 24 * time.Hour
	}
	if deps.MockFlag == nil {
		deps.MockFlag = orchestration.NewMockModeFlag(false)
	}
	admins := make(map[string]bool, len(deps.AdminEmails))
	for _, email := range deps.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return &Handler{
		runner: runner{
			sessions: deps.Sessions,
			recorder: history.NewRecorder(deps.Store),
		},
		llm:        deps.LLM,
		store:      deps.Store,
		jwtManager: deps.JWTManager,
		tokenTTL:   deps.TokenTTL,
		mockFlag:   deps.MockFlag,
		admins:     admins,
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: message, Code: code})
}

// bindGenerationRequest decodes and validates a generation request, writing
// the error response itself when it returns false.
func bindGenerationRequest(c *gin.Context) (models.GenerationRequest, bool) {
	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return req, false
	}
	if err := req.Validate(); err != nil {
		var validation *models.ValidationError
		details := map[string]string{}
		if errors.As(err, &validation) {
			details[validation.Field] = validation.Reason
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   err.Error(),
			Code:    models.ErrCodeValidationFailed,
			Details: details,
		})
		return req, false
	}
	return req, true
}

func (h *Handler) requireStore(c *gin.Context) bool {
	if h.store == nil {
		respondError(c, http.StatusServiceUnavailable, models.ErrCodeInternalError, "Database is not configured")
		return false
	}
	return true
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}
	if !h.requireStore(c) {
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Invalid email or password")
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// Register godoc
// @Summary Register user
// @Description Create an account and return a JWT token for it
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Account details"
// @Success 201 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}
	if !h.requireStore(c) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to hash password")
		return
	}

	user := &models.User{
		Username:       strings.TrimSpace(req.Username),
		Email:          req.Email,
		HashedPassword: string(hash),
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, history.ErrUserExists) {
			respondError(c, http.StatusConflict, models.ErrCodeConflict, "Email is already registered")
			return
		}
		log.Printf(`{"level":"error","message":"Failed to create user","email":"%s","error":%q}`, req.Email, err.Error())
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to create user")
		return
	}

	log.Printf(`{"level":"info","message":"User registered","user_id":"%s"}`, user.ID)
	h.respondWithToken(c, http.StatusCreated, user)
}

// respondWithToken issues a token for user and writes the login response
func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.jwtManager.GenerateToken(
		c.Request.Context(),
		user.ID,
		user.Username,
		user.Email,
		h.rolesFor(user.Email),
		h.tokenTTL,
	)
	if err != nil {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to generate token")
		return
	}

	c.JSON(status, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToUserInfo(),
	})
}

func (h *Handler) rolesFor(email string) []string {
	if h.admins[strings.ToLower(email)] {
		return []string{auth.RoleUser, auth.RoleAdmin}
	}
	return []string{auth.RoleUser}
}

// RefreshToken godoc
// @Summary Refresh token
// @Description Exchange a valid JWT for a new one with a fresh expiry
// @Tags auth
// @Produce json
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	token, expiresAt, err := h.jwtManager.RefreshToken(c.Request.Context(), auth.TokenFromRequest(c), h.tokenTTL)
	if err != nil {
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Invalid or expired token")
		return
	}
	c.JSON(http.StatusOK, models.TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user's profile with experience and level
// @Tags auth
// @Produce json
// @Success 200 {object} models.UserInfo
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	userID, _ := auth.UserID(c)

	user, err := h.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, user.ToUserInfo())
}

// GenerateCode godoc
// @Summary Generate code
// @Description Run a generation to completion and return the result. Falls back to the built-in templates when the LLM service fails.
// @Tags agent
// @Accept json
// @Produce json
// @Param request body models.GenerationRequest true "Generation request"
// @Success 200 {object} GenerationResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /agent/generate [post]
func (h *Handler) GenerateCode(c *gin.Context) {
	req, ok := bindGenerationRequest(c)
	if !ok {
		return
	}

	userID, _ := auth.UserID(c)
	session := h.sessions.Get(sessionKey(c, userID))

	resp, err := h.run(c.Request.Context(), session, userID, req, nil)
	if err != nil {
		log.Printf(`{"level":"error","message":"Generation failed","user_id":"%s","error":%q}`, userID, err.Error())
		respondError(c, http.StatusInternalServerError, models.ErrCodeGenerationFailed, "Generation failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSessionState godoc
// @Summary Current generation state
// @Description Snapshot of the caller's latest attempt, for clients reconnecting mid-generation
// @Tags agent
// @Produce json
// @Success 200 {object} orchestration.AttemptState
// @Security BearerAuth
// @Router /agent/session [get]
func (h *Handler) GetSessionState(c *gin.Context) {
	userID, _ := auth.UserID(c)
	session, ok := h.sessions.Lookup(sessionKey(c, userID))
	if !ok {
		c.JSON(http.StatusOK, orchestration.AttemptState{Steps: []models.ThinkingStep{}})
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// CancelGeneration godoc
// @Summary Cancel generation
// @Description Cancel the caller's in-flight generation
// @Tags agent
// @Success 204
// @Security BearerAuth
// @Router /agent/session [delete]
func (h *Handler) CancelGeneration(c *gin.Context) {
	userID, _ := auth.UserID(c)
	if session, ok := h.sessions.Lookup(sessionKey(c, userID)); ok {
		session.Cancel()
	}
	c.Status(http.StatusNoContent)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		return 0
	}
	return limit
}

// ListJobs godoc
// @Summary List generation history
// @Tags agent
// @Produce json
// @Param limit query int false "Maximum number of jobs"
// @Success 200 {array} models.AgentJob
// @Security BearerAuth
// @Router /agent/jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	userID, _ := auth.UserID(c)

	jobs, err := h.store.ListJobs(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to list jobs","error":"%v","user_id":"%s"}`, err, userID)
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to list jobs")
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob godoc
// @Summary Get generation job
// @Tags agent
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.AgentJob
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /agent/jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	userID, _ := auth.UserID(c)

	job, err := h.store.GetJob(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "Job not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListActivities godoc
// @Summary List activity feed
// @Tags gamification
// @Produce json
// @Param limit query int false "Maximum number of activities"
// @Success 200 {array} models.Activity
// @Security BearerAuth
// @Router /activities [get]
func (h *Handler) ListActivities(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	userID, _ := auth.UserID(c)

	activities, err := h.store.ListActivities(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to list activities")
		return
	}
	c.JSON(http.StatusOK, activities)
}

// ValidateCodeRequest is the body of the validate endpoint
type ValidateCodeRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language"`
}

// ValidateCode godoc
// @Summary Validate code
// @Description Ask the LLM service to validate generated code
// @Tags agent
// @Accept json
// @Produce json
// @Param request body ValidateCodeRequest true "Code to validate"
// @Success 200 {object} orchestration.CodeValidation
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /agent/validate [post]
func (h *Handler) ValidateCode(c *gin.Context) {
	var req ValidateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}
	if req.Language == "" {
		req.Language = models.DefaultLanguage
	}

	validation, err := h.llm.ValidateCode(c.Request.Context(), req.Code, req.Language)
	if err != nil {
		log.Printf(`{"level":"warn","message":"Code validation failed","error":%q}`, err.Error())
		respondError(c, http.StatusBadGateway, models.ErrCodeUpstreamFailed, "LLM service unavailable")
		return
	}
	c.JSON(http.StatusOK, validation)
}

// GetProjectContext godoc
// @Summary Analyze project context
// @Tags agent
// @Produce json
// @Success 200 {object} orchestration.ProjectAnalysis
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /agent/context [get]
func (h *Handler) GetProjectContext(c *gin.Context) {
	analysis, err := h.llm.AnalyzeContext(c.Request.Context())
	if err != nil {
		log.Printf(`{"level":"warn","message":"Context analysis failed","error":%q}`, err.Error())
		respondError(c, http.StatusBadGateway, models.ErrCodeUpstreamFailed, "LLM service unavailable")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// ListTemplates godoc
// @Summary Quick prompt templates
// @Tags agent
// @Produce json
// @Success 200 {array} mock.PromptTemplate
// @Router /agent/templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	if userID, ok := auth.UserID(c); ok {
		log.Printf(`{"level":"debug","message":"Templates requested","user_id":"%s"}`, userID)
	}
	c.JSON(http.StatusOK, mock.PromptTemplates)
}

// Settings are the runtime-adjustable feature flags
type Settings struct {
	MockData bool `json:"mock_data"`
}

// GetSettings godoc
// @Summary Get feature settings
// @Tags settings
// @Produce json
// @Success 200 {object} Settings
// @Security BearerAuth
// @Router /settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, Settings{MockData: h.mockFlag.Enabled()})
}

// UpdateSettings godoc
// @Summary Update feature settings
// @Description Toggle mock mode for every user. Applies to attempts started after the change. Requires the admin role.
// @Tags settings
// @Accept json
// @Produce json
// @Param request body Settings true "Settings"
// @Success 200 {object} Settings
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	h.mockFlag.Set(req.MockData)
	userID, _ := auth.UserID(c)
	log.Printf(`{"level":"info","message":"Mock mode updated","mock_data":%t,"user_id":"%s"}`, req.MockData, userID)

	c.JSON(http.StatusOK, Settings{MockData: h.mockFlag.Enabled()})
}
