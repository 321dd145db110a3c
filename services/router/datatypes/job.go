// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains the inference job model and the request/response types
// for the submit and status endpoints.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxPromptBytes is the maximum size of a submitted prompt. Larger
	// payloads are rejected at the API boundary before queueing.
	MaxPromptBytes = 32 * 1024 // 32KB

	// MaxSystemPromptBytes bounds the optional system prompt.
	MaxSystemPromptBytes = 8 * 1024 // 8KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// jobValidate is the validator instance for job datatypes.
var jobValidate *validator.Validate

func init() {
	jobValidate = validator.New()
	_ = jobValidate.RegisterValidation("maxpromptbytes", validateMaxPromptBytes)
}

// validateMaxPromptBytes checks byte length (not rune count) so oversized
// multi-byte payloads cannot slip past a rune-based limit.
func validateMaxPromptBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Job Model
// =============================================================================

// Lane identifies which queue lane a job is waiting in.
type Lane string

const (
	LaneRegular Lane = "regular"
	LaneRetry   Lane = "retry"
)

// JobStatus is the lifecycle state of a submitted job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InferenceJob is one unit of work owned by exactly one region queue from
// enqueue until it reaches a terminal state. The queue worker is the only
// goroutine that mutates a job after submission.
type InferenceJob struct {
	ID           string    `json:"id"`
	Region       string    `json:"region"`
	Model        string    `json:"model"`
	QuestionID   string    `json:"question_id,omitempty"`
	Prompt       string    `json:"prompt"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Temperature  float32   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	Lane         Lane      `json:"lane"`
	RetryCount   int       `json:"retry_count"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	LastAttempt  time.Time `json:"last_attempt_at,omitempty"`
}

// JobResult is the poller-visible state of a job. It is created at submit
// time with StatusQueued and mutated only by the owning region worker until
// the status is terminal; afterwards it is read-only.
type JobResult struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Region      string    `json:"region"`
	Model       string    `json:"model"`
	QuestionID  string    `json:"question_id,omitempty"`
	ProviderID  string    `json:"provider_id,omitempty"`
	Response    string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	RetryCount  int       `json:"retry_count"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	DurationSec float64   `json:"duration_seconds,omitempty"`
}

// =============================================================================
// Submit / Status API Types
// =============================================================================

// SubmitJobRequest is the body of POST /v1/jobs.
//
// # Validation
//
// Uses go-playground/validator:
//   - Model: required
//   - Prompt: required, max 32KB (maxpromptbytes)
//   - Temperature: 0-2
//   - MaxTokens: 1-8192
//   - RegionPreference: required (the upstream fan-out names the region
//     explicitly; there is no implicit region inference here)
type SubmitJobRequest struct {
	Model            string  `json:"model" validate:"required"`
	Prompt           string  `json:"prompt" validate:"required,maxpromptbytes"`
	SystemPrompt     string  `json:"system_prompt,omitempty" validate:"omitempty,max=8192"`
	Temperature      float32 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens        int     `json:"max_tokens" validate:"required,gte=1,lte=8192"`
	RegionPreference string  `json:"region_preference" validate:"required"`
	QuestionID       string  `json:"question_id,omitempty"`
}

// Validate runs struct validation on the submit request.
func (r *SubmitJobRequest) Validate() error {
	return jobValidate.Struct(r)
}

// SubmitJobResponse is the body returned by POST /v1/jobs.
//
// QueuePosition is 1-based and includes the submitted job itself: 1 means
// "next to run" on an idle queue. Jobs ahead of it in either lane, plus any
// job currently processing, push the position higher. The 1-based convention
// keeps estimated_wait_seconds meaningful on an idle queue (one seed-average
// duration rather than zero).
type SubmitJobResponse struct {
	JobID                string    `json:"job_id"`
	Status               JobStatus `json:"status"`
	Region               string    `json:"region"`
	QueuePosition        int       `json:"queue_position"`
	EstimatedWaitSeconds float64   `json:"estimated_wait_seconds"`
}

// QueueStatus is the snapshot of one region queue returned by GET /v1/queues.
type QueueStatus struct {
	Region         string  `json:"region"`
	RegularDepth   int     `json:"regular_depth"`
	PriorityDepth  int     `json:"priority_depth"`
	Processing     bool    `json:"processing"`
	CurrentJobID   string  `json:"current_job_id,omitempty"`
	CompletedCount uint64  `json:"completed"`
	FailedCount    uint64  `json:"failed"`
	AvgDurationSec float64 `json:"avg_duration_seconds"`
}

// JobEvent is broadcast on the job-event websocket at every lifecycle
// transition of any job.
type JobEvent struct {
	Type       string    `json:"type"` // "queued", "processing", "completed", "failed", "retry_scheduled"
	JobID      string    `json:"job_id"`
	Region     string    `json:"region"`
	ProviderID string    `json:"provider_id,omitempty"`
	RetryCount int       `json:"retry_count,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
