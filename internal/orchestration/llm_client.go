package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/stream"
)

// LLMClientInterface defines the interface for the LLM service client
type LLMClientInterface interface {
	OpenStream(ctx context.Context, req models.GenerationRequest) (*GenerationStream, error)
	AnalyzeContext(ctx context.Context) (*ProjectAnalysis, error)
	ValidateCode(ctx context.Context, code, language string) (*CodeValidation, error)
	IsHealthy(ctx context.Context) bool
}

// LLMClient handles communication with the LLM generation service
type LLMClient struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	tracer       trace.Tracer
	breaker      *gobreaker.CircuitBreaker
}

// ProjectAnalysis is the LLM service's view of the current project
type ProjectAnalysis struct {
	Files      []string               `json:"files"`
	Structure  map[string]interface{} `json:"structure"`
	GitCommits int                    `json:"git_commits"`
}

// CodeValidation is the result of validating generated code
type CodeValidation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// GenerationStream is an open streaming generation response
type GenerationStream struct {
	*stream.Decoder
	body io.Closer
}

// Close releases the underlying response body
func (s *GenerationStream) Close() error {
	return s.body.Close()
}

// NewLLMClient creates a new LLM service client
func NewLLMClient(baseURL string, timeout time.Duration) *LLMClient {
	if baseURL == "" {
		baseURL = "http://localhost:8001"
		log.Printf("WARN: LLM base URL not set, defaulting to %s", baseURL)
	}

	// Initialize circuit breaker
	settings := gobreaker.Settings{
		Name:        "llm-service",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &LLMClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Streams are bounded by the caller's context, not a client timeout
		streamClient: &http.Client{},
		tracer:       otel.Tracer("llm-client"),
		breaker:      gobreaker.NewCircuitBreaker(settings),
	}
}

// SetBaseURL sets the base URL for testing purposes
func (c *LLMClient) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// OpenStream starts a streaming generation and returns a decoder over its events
func (c *LLMClient) OpenStream(ctx context.Context, req models.GenerationRequest) (*GenerationStream, error) {
	ctx, span := c.tracer.Start(ctx, "llm.open_stream")
	defer span.End()

	span.SetAttributes(
		attribute.String("language", req.Language),
		attribute.Bool("git_history", req.ProjectContext.GitHistory),
	)

	// Execute with circuit breaker
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.openStreamInternal(ctx, req)
	})

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open generation stream: %w", err)
	}

	return result.(*GenerationStream), nil
}

// openStreamInternal performs the actual HTTP request
func (c *LLMClient) openStreamInternal(ctx context.Context, req models.GenerationRequest) (*GenerationStream, error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/api/generate/stream", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, &stream.TransportError{Err: err}
	}

	decoder, err := stream.Open(resp)
	if err != nil {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	return &GenerationStream{Decoder: decoder, body: resp.Body}, nil
}

// AnalyzeContext asks the LLM service to analyze the project context
func (c *LLMClient) AnalyzeContext(ctx context.Context) (*ProjectAnalysis, error) {
	ctx, span := c.tracer.Start(ctx, "llm.analyze_context")
	defer span.End()

	var analysis ProjectAnalysis
	if _, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doJSON(ctx, http.MethodGet, "/api/context/analyze", nil, &analysis)
	}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to analyze project context: %w", err)
	}

	span.SetAttributes(attribute.Int("files", len(analysis.Files)))
	return &analysis, nil
}

// ValidateCode asks the LLM service to validate generated code
func (c *LLMClient) ValidateCode(ctx context.Context, code, language string) (*CodeValidation, error) {
	ctx, span := c.tracer.Start(ctx, "llm.validate_code")
	defer span.End()

	span.SetAttributes(attribute.String("language", language))

	body := map[string]string{"code": code, "language": language}
	var validation CodeValidation
	if _, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doJSON(ctx, http.MethodPost, "/api/validate", body, &validation)
	}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to validate code: %w", err)
	}

	span.SetAttributes(attribute.Bool("valid", validation.Valid))
	return &validation, nil
}

// IsHealthy checks if the LLM service is healthy
func (c *LLMClient) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "llm.health_check")
	defer span.End()

	// Use circuit breaker state as a quick health indicator
	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	// Short timeout for health checks
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))

	return healthy
}

func (c *LLMClient) newJSONRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	return httpReq, nil
}

func (c *LLMClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	httpReq, err := c.newJSONRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("llm service returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("llm service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
