package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/flashcording/agent-orchestrator/internal/auth"
	"github.com/flashcording/agent-orchestrator/internal/config"
	"github.com/flashcording/agent-orchestrator/internal/gateway"
	"github.com/flashcording/agent-orchestrator/internal/history"
	"github.com/flashcording/agent-orchestrator/internal/metrics"
	"github.com/flashcording/agent-orchestrator/internal/mock"
	"github.com/flashcording/agent-orchestrator/internal/orchestration"

	_ "github.com/flashcording/agent-orchestrator/docs" // swagger docs
)

// @title Flash Agent Orchestrator API
// @version 1.0
// @description Streaming code generation for the IDE.
// @description
// @description Consumes the LLM service stream, reconciles thinking steps and falls back to built-in templates when the service fails.

// @contact.name API Support
// @contact.email support@flashcording.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize OpenTelemetry
	tp, err := initTracer()
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	var metricsProvider *metrics.Provider
	if cfg.Metrics.Enabled {
		metricsProvider, err = metrics.NewProvider(true)
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}
	}
	generationMetrics, err := metrics.NewGenerationMetrics()
	if err != nil {
		log.Fatalf("Failed to create generation metrics: %v", err)
	}

	// History is optional: without a database the API still generates code
	store, err := history.Open(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	if store == nil {
		log.Println("WARN: no database configured, login and history endpoints are disabled")
	} else {
		defer store.Close()
	}

	// Initialize JWT manager
	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize JWT manager: %v", err)
	}

	// Initialize orchestration layer
	llmClient := orchestration.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.Timeout)
	mockFlag := orchestration.NewMockModeFlag(cfg.Features.MockData)
	generator := mock.NewGenerator(cfg.Mock.StepDelay, cfg.Mock.WordDelay)
	orchestrator := orchestration.NewOrchestrator(llmClient, generator, mockFlag, generationMetrics)
	sessions := gateway.NewSessionRegistry(orchestrator, gateway.SessionLimits{
		IdleTTL:    cfg.Server.SessionIdleTTL,
		MaxPerUser: cfg.Server.MaxSessionsPerUser,
	})

	// Initialize gateway layer
	gatewayHandler := gateway.NewHandler(gateway.Deps{
		LLM:         llmClient,
		Sessions:    sessions,
		Store:       store,
		JWTManager:  jwtManager,
		TokenTTL:    cfg.Auth.TokenTTL,
		MockFlag:    mockFlag,
		AdminEmails: cfg.Auth.AdminEmails,
	})
	generationSocket := gateway.NewGenerationSocket(sessions, store, jwtManager)

	// Setup Gin router
	router := gin.Default()

	// Add structured JSON logging middleware
	router.Use(structuredLoggingMiddleware())

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		// Check database connectivity for readiness
		if store != nil {
			if err := store.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not ready",
					"error":  "database connection failed",
				})
				return
			}
		}

		// The LLM service is advisory: generations fall back to templates without it
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"database":    store != nil,
			"llm_service": llmClient.IsHealthy(ctx),
			"mock_data":   mockFlag.Enabled(),
		})
	})

	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	// Swagger documentation (public)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	gateway.RegisterRoutes(router, gatewayHandler, generationSocket, jwtManager)

	// HTTP server configuration
	port := cfg.Server.Port

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     otelhttp.NewHandler(router, "agent-orchestrator"),
		ReadTimeout: 15 * time.Second,
		// No write timeout: generation streams stay open for the whole attempt
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting Flash Agent Orchestrator on port %d (env=%s, mock_data=%t)\n", port, cfg.Env, cfg.Features.MockData)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}
	if metricsProvider != nil {
		if err := metricsProvider.Shutdown(ctx); err != nil {
			log.Printf("Failed to stop metrics: %v", err)
		}
	}

	log.Println("Server exited")
}

// initTracer initializes OpenTelemetry tracing
func initTracer() (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// structuredLoggingMiddleware provides structured JSON logging for all requests
func structuredLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Calculate latency
		latency := time.Since(start)

		// Get user ID from context if available
		userID, _ := c.Get(auth.UserIDKey)

		// Build log entry
		logEntry := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		// Add user ID if authenticated
		if userID != nil {
			logEntry["user_id"] = userID
		}
		if clientID := c.GetHeader(gateway.ClientIDHeader); clientID != "" {
			logEntry["client_id"] = clientID
		}

		// Add error if present
		if len(c.Errors) > 0 {
			logEntry["errors"] = c.Errors.String()
		}

		// Output as JSON
		logJSON, _ := json.Marshal(logEntry)
		log.Println(string(logJSON))
	}
}
