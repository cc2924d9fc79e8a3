package models

import (
	"time"
)

// GenerationPath records which path produced an attempt's result
type GenerationPath string

const (
	GenerationPathReal GenerationPath = "real"
	GenerationPathMock GenerationPath = "mock"
)

// JobStatus represents the status of an agent job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// AgentJob is the persisted record of one generation attempt
type AgentJob struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"user_id" db:"user_id"`
	Prompt         string         `json:"prompt" db:"prompt"`
	Language       string         `json:"language" db:"language"`
	Path           GenerationPath `json:"path" db:"path"`
	Status         JobStatus      `json:"status" db:"status"`
	Code           string         `json:"code,omitempty" db:"code"`
	FallbackReason *string        `json:"fallback_reason,omitempty" db:"fallback_reason"`
	ErrorMessage   *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// Activity represents a gamification activity feed entry
type Activity struct {
	ID          string                 `json:"id" db:"id"`
	UserID      string                 `json:"user_id" db:"user_id"`
	EventType   string                 `json:"event_type" db:"event_type"`
	Description string                 `json:"description" db:"description"`
	ExpGained   int                    `json:"exp_gained" db:"exp_gained"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// Activity event types
const (
	ActivityCodeGenerated = "code_generated"
)

// ExpCodeGenerated is awarded for every completed generation
const ExpCodeGenerated = 20
