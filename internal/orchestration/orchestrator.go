package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flashcording/agent-orchestrator/internal/metrics"
	"github.com/flashcording/agent-orchestrator/internal/mock"
	"github.com/flashcording/agent-orchestrator/internal/models"
	"github.com/flashcording/agent-orchestrator/internal/steps"
)

// StreamOpener opens a streaming generation against the LLM service
type StreamOpener interface {
	OpenStream(ctx context.Context, req models.GenerationRequest) (*GenerationStream, error)
}

// Orchestrator decides between the LLM service and the mock generator and
// guarantees a terminal state for every attempt.
type Orchestrator struct {
	client  StreamOpener
	mock    *mock.Generator
	flag    FeatureFlag
	metrics *metrics.GenerationMetrics
	tracer  trace.Tracer
}

// Outcome describes how an attempt reached its result
type Outcome struct {
	AttemptID   string
	Result      *models.GenerationResult
	Path        models.GenerationPath
	FallbackErr error
	Duration    time.Duration
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(client StreamOpener, generator *mock.Generator, flag FeatureFlag, m *metrics.GenerationMetrics) *Orchestrator {
	if flag == nil {
		flag = StaticFlag(false)
	}
	return &Orchestrator{
		client:  client,
		mock:    generator,
		flag:    flag,
		metrics: m,
		tracer:  otel.Tracer("generation-orchestrator"),
	}
}

// NewSession creates a session whose attempts supersede one another
func (o *Orchestrator) NewSession() *Session {
	return &Session{o: o}
}

// Generate runs a single attempt on its own session
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest, obs Observer) (*models.GenerationResult, error) {
	return o.NewSession().Generate(ctx, req, obs)
}

// Session owns the attempt-scoped state for one client. Starting a new
// attempt supersedes the previous one: its context is cancelled and its
// remaining notifications are dropped.
type Session struct {
	o       *Orchestrator
	mu      sync.Mutex
	current *attempt
	cancel  context.CancelFunc
}

// Generate runs an attempt and returns its terminal result
func (s *Session) Generate(ctx context.Context, req models.GenerationRequest, obs Observer) (*models.GenerationResult, error) {
	outcome, err := s.Run(ctx, req, obs)
	if err != nil {
		return nil, err
	}
	return outcome.Result, nil
}

// Run runs an attempt and reports which path produced the result.
// Observers must not start a new attempt on the same session synchronously.
func (s *Session) Run(ctx context.Context, req models.GenerationRequest, obs Observer) (*Outcome, error) {
	p, err := s.Start(ctx, req, obs)
	if err != nil {
		return nil, err
	}
	return p.Run()
}

// Start validates req and makes its attempt the session's current one,
// cancelling the previous attempt. Nothing is notified until Run is called,
// so callers can start attempts in arrival order and drive them elsewhere.
func (s *Session) Start(ctx context.Context, req models.GenerationRequest, obs Observer) (*Pending, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	ctx, cancel := context.WithCancel(ctx)
	a := newAttempt(s, req, obs)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.current = a
	s.cancel = cancel
	s.mu.Unlock()

	return &Pending{session: s, attempt: a, ctx: ctx, cancel: cancel}, nil
}

// Pending is a started attempt that has not been driven yet
type Pending struct {
	session *Session
	attempt *attempt
	ctx     context.Context
	cancel  context.CancelFunc
}

// AttemptID returns the id of the started attempt
func (p *Pending) AttemptID() string {
	return p.attempt.id
}

// Run drives the attempt to its terminal state. An attempt superseded before
// or during Run returns an error wrapping context.Canceled.
func (p *Pending) Run() (*Outcome, error) {
	s, a := p.session, p.attempt
	defer func() {
		s.mu.Lock()
		if s.current == a {
			s.cancel = nil
		}
		a.state.Done = true
		s.mu.Unlock()
		p.cancel()
	}()

	return s.o.run(p.ctx, a)
}

// Active reports whether an attempt is in flight
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cancel stops the session's in-flight attempt, if any. The attempt returns
// an error wrapping context.Canceled.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// State returns a snapshot of the session's latest attempt
func (s *Session) State() AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return AttemptState{}
	}
	return s.current.snapshot()
}

func (o *Orchestrator) run(ctx context.Context, a *attempt) (*Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.generate")
	defer span.End()

	start := time.Now()
	language := a.req.TargetLanguage()
	useMock := o.flag.Enabled()

	span.SetAttributes(
		attribute.String("attempt.id", a.id),
		attribute.String("language", language),
		attribute.Bool("mock_forced", useMock),
	)
	if o.metrics != nil {
		o.metrics.RecordAttemptStarted(ctx, language, useMock)
	}

	a.begin()

	var fallbackErr error
	if !useMock {
		result, err := o.runReal(ctx, a)
		if err == nil {
			return o.finish(ctx, span, a, result, models.GenerationPathReal, nil, start), nil
		}
		if ctx.Err() != nil {
			return nil, o.fail(ctx, span, a, ctx.Err(), start)
		}

		fallbackErr = err
		reason := FallbackReason(err)
		span.SetAttributes(attribute.String("fallback.reason", reason))
		log.Printf(`{"level":"warn","message":"Real generation failed, using mock fallback","attempt_id":"%s","reason":"%s","error":%q}`,
			a.id, reason, err.Error())
		if o.metrics != nil {
			o.metrics.RecordFallback(ctx, reason)
		}
		a.fail(err)
	}

	if o.mock == nil {
		return nil, o.fail(ctx, span, a, errors.New("mock generator is not configured"), start)
	}

	result, err := o.mock.Run(ctx, a.req, a.rec, a)
	if err != nil {
		return nil, o.fail(ctx, span, a, err, start)
	}

	return o.finish(ctx, span, a, result, models.GenerationPathMock, fallbackErr, start), nil
}

// runReal consumes the LLM service stream until a complete event arrives
func (o *Orchestrator) runReal(ctx context.Context, a *attempt) (*models.GenerationResult, error) {
	if o.client == nil {
		return nil, errors.New("llm client is not configured")
	}

	gs, err := o.client.OpenStream(ctx, a.req)
	if err != nil {
		return nil, err
	}
	defer gs.Close()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordSkippedRecords(ctx, gs.Skipped())
		}
	}()

	chunks := 0
	for {
		event, err := gs.Next()
		if errors.Is(err, io.EOF) {
			return nil, &ExhaustionError{ChunksReceived: chunks}
		}
		if err != nil {
			return nil, err
		}

		switch event.Type {
		case models.EventTypeThinkingStep:
			a.applyStep(*event.Step)
		case models.EventTypeCodeChunk:
			chunks++
			a.Chunk(event.Chunk)
		case models.EventTypeComplete:
			return a.normalize(event.Result), nil
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, a *attempt, result *models.GenerationResult, path models.GenerationPath, fallbackErr error, start time.Time) *Outcome {
	a.complete(result)

	duration := time.Since(start)
	span.SetAttributes(attribute.String("path", string(path)))
	if o.metrics != nil {
		o.metrics.RecordAttemptCompleted(ctx, string(path), result.Language, duration)
	}

	return &Outcome{
		AttemptID:   a.id,
		Result:      result,
		Path:        path,
		FallbackErr: fallbackErr,
		Duration:    duration,
	}
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, a *attempt, err error, start time.Time) error {
	span.RecordError(err)
	if o.metrics != nil {
		errorType := "mock_failed"
		if errors.Is(err, context.Canceled) {
			errorType = "cancelled"
		} else if errors.Is(err, context.DeadlineExceeded) {
			errorType = "timeout"
		}
		o.metrics.RecordAttemptFailed(context.WithoutCancel(ctx), errorType, time.Since(start))
	}
	return fmt.Errorf("generation attempt %s failed: %w", a.id, err)
}

// AttemptState is a snapshot of an attempt's UI-visible state
type AttemptState struct {
	AttemptID string                `json:"attempt_id"`
	Steps     []models.ThinkingStep `json:"steps"`
	Code      string                `json:"code"`
	Progress  float64               `json:"progress"`
	Message   string                `json:"message"`
	Done      bool                  `json:"done"`
}

// attempt holds everything scoped to one generation attempt. Its reconciler
// has a single writer (the goroutine running the attempt); the mirrored state
// is only touched under the session lock.
type attempt struct {
	id      string
	session *Session
	req     models.GenerationRequest
	obs     Observer
	rec     *steps.Reconciler
	buffer  strings.Builder
	state   AttemptState
}

func newAttempt(s *Session, req models.GenerationRequest, obs Observer) *attempt {
	seq := steps.DefaultSequence()
	return &attempt{
		id:      uuid.New().String(),
		session: s,
		req:     req,
		obs:     obs,
		rec:     steps.NewReconciler(seq),
		state: AttemptState{
			Steps: seq,
		},
	}
}

// deliver runs fn under the session lock if the attempt has not been superseded
func (a *attempt) deliver(fn func()) {
	a.session.mu.Lock()
	defer a.session.mu.Unlock()
	if a.session.current != a {
		return
	}
	fn()
}

func (a *attempt) begin() {
	a.deliver(func() {
		a.state.AttemptID = a.id
		for _, s := range a.state.Steps {
			a.obs.OnThinkingStep(s)
		}
	})
}

func (a *attempt) applyStep(update models.StepUpdate) {
	before, _ := a.rec.Step(update.Step)
	step, ok := a.rec.Apply(update)
	if !ok {
		log.Printf(`{"level":"warn","message":"Ignoring update for unknown step","attempt_id":"%s","step":%d}`, a.id, update.Step)
		return
	}
	if step == before {
		return
	}
	a.Step(step)
	a.Progress(a.rec.Progress(), step.Title)
}

// Step implements mock.Emitter
func (a *attempt) Step(step models.ThinkingStep) {
	a.deliver(func() {
		for i := range a.state.Steps {
			if a.state.Steps[i].Step == step.Step {
				a.state.Steps[i] = step
			}
		}
		a.obs.OnThinkingStep(step)
	})
}

// Progress implements mock.Emitter. Reported values never decrease.
func (a *attempt) Progress(value float64, message string) {
	a.deliver(func() {
		if value < a.state.Progress {
			value = a.state.Progress
		}
		a.state.Progress = value
		a.state.Message = message
		a.obs.OnProgress(value, message)
	})
}

// Chunk implements mock.Emitter
func (a *attempt) Chunk(chunk string) {
	a.deliver(func() {
		a.buffer.WriteString(chunk)
		a.obs.OnCodeChunk(chunk)
	})
}

// fail reports a real-path failure. Partial code from the failed stream is
// discarded so the buffer ends up holding only the fallback's output.
func (a *attempt) fail(err error) {
	a.deliver(func() {
		a.buffer.Reset()
		a.obs.OnError(err)
	})
}

func (a *attempt) complete(result *models.GenerationResult) {
	a.Progress(100, "Complete!")
	a.deliver(func() {
		a.obs.OnComplete(result)
	})
}

// normalize fills fields a complete event may omit
func (a *attempt) normalize(result *models.GenerationResult) *models.GenerationResult {
	if result == nil {
		result = &models.GenerationResult{}
	}
	if result.Code == "" {
		a.session.mu.Lock()
		result.Code = a.buffer.String()
		a.session.mu.Unlock()
	}
	if result.Language == "" {
		result.Language = a.req.TargetLanguage()
	}
	if result.FilesChanged == nil {
		result.FilesChanged = []models.FileChange{}
	}
	return result
}

func (a *attempt) snapshot() AttemptState {
	out := a.state
	out.Steps = make([]models.ThinkingStep, len(a.state.Steps))
	copy(out.Steps, a.state.Steps)
	out.Code = a.buffer.String()
	return out
}

var _ mock.Emitter = (*attempt)(nil)
