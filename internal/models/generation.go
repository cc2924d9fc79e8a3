package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Supported target languages
const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
	LanguageTypeScript = "typescript"
)

// DefaultLanguage is used when a request does not name one
const DefaultLanguage = LanguagePython

// ProjectContext carries the project-context flags sent with a generation request
type ProjectContext struct {
	Files      []string `json:"files,omitempty"`
	GitHistory bool     `json:"git_history"`
}

// GenerationRequest represents a single code generation request from the IDE
type GenerationRequest struct {
	Prompt         string         `json:"prompt"`
	Language       string         `json:"language"`
	ProjectContext ProjectContext `json:"project_context"`
}

// Validate rejects requests that must never start an attempt
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	return nil
}

// TargetLanguage returns the requested language, defaulting to python
func (r GenerationRequest) TargetLanguage() string {
	lang := strings.ToLower(strings.TrimSpace(r.Language))
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// ValidationError is returned for requests rejected before any attempt starts
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StepStatus is the lifecycle state of a thinking step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusProcessing StepStatus = "processing"
	StepStatusCompleted  StepStatus = "completed"
)

// Rank orders statuses so that transitions can be checked for monotonicity
func (s StepStatus) Rank() int {
	switch s {
	case StepStatusProcessing:
		return 1
	case StepStatusCompleted:
		return 2
	default:
		return 0
	}
}

// ThinkingStep is one unit of the predeclared thinking pipeline
type ThinkingStep struct {
	Step    int        `json:"step"`
	Title   string     `json:"title"`
	Status  StepStatus `json:"status"`
	Details string     `json:"details,omitempty"`
}

// StepUpdate is a partial thinking step as received from the stream.
// Nil fields are left untouched when merged.
type StepUpdate struct {
	Step    int         `json:"step"`
	Title   *string     `json:"title,omitempty"`
	Status  *StepStatus `json:"status,omitempty"`
	Details *string     `json:"details,omitempty"`
}

// FileChange describes one file touched by a generation
type FileChange struct {
	Path         string `json:"path"`
	Changes      string `json:"changes,omitempty"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
}

// GenerationResult is the terminal artifact of a successful attempt
type GenerationResult struct {
	Code         string       `json:"code"`
	Language     string       `json:"language"`
	Explanation  string       `json:"explanation,omitempty"`
	FilesChanged []FileChange `json:"files_changed"`
}

// Stream event types
const (
	EventTypeThinkingStep = "thinking_step"
	EventTypeCodeChunk    = "code_chunk"
	EventTypeComplete     = "complete"
)

// StreamEvent is one decoded record of the generation stream
type StreamEvent struct {
	Type   string
	Step   *StepUpdate
	Chunk  string
	Result *GenerationResult
}

// rawStreamEvent mirrors the wire shape {type, data}
type rawStreamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the tagged {type, data} wire shape
func (e *StreamEvent) UnmarshalJSON(b []byte) error {
	var raw rawStreamEvent
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case EventTypeThinkingStep:
		var step StepUpdate
		if err := json.Unmarshal(raw.Data, &step); err != nil {
			return fmt.Errorf("failed to decode thinking_step: %w", err)
		}
		*e = StreamEvent{Type: raw.Type, Step: &step}
	case EventTypeCodeChunk:
		var chunk string
		if err := json.Unmarshal(raw.Data, &chunk); err != nil {
			return fmt.Errorf("failed to decode code_chunk: %w", err)
		}
		*e = StreamEvent{Type: raw.Type, Chunk: chunk}
	case EventTypeComplete:
		var result GenerationResult
		if err := json.Unmarshal(raw.Data, &result); err != nil {
			return fmt.Errorf("failed to decode complete: %w", err)
		}
		*e = StreamEvent{Type: raw.Type, Result: &result}
	default:
		return fmt.Errorf("unknown event type %q", raw.Type)
	}
	return nil
}

// MarshalJSON encodes the event back into the {type, data} wire shape
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	var data interface{}
	switch e.Type {
	case EventTypeThinkingStep:
		data = e.Step
	case EventTypeCodeChunk:
		data = e.Chunk
	case EventTypeComplete:
		data = e.Result
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return json.Marshal(map[string]interface{}{"type": e.Type, "data": data})
}
