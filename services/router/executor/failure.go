// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"errors"
	"fmt"
)

// FailureKind normalizes heterogeneous provider failure shapes into the
// three cases the queue's retry logic cares about. Everything else about a
// vendor error (HTTP codes, SDK error types, truncated JSON) stays behind
// this boundary.
type FailureKind string

const (
	// FailureTransient covers timeouts, network errors and non-2xx
	// responses. Transient failures are retried with backoff.
	FailureTransient FailureKind = "transient"

	// FailureMalformed covers responses that arrived but could not be
	// interpreted. Also retried: regional workers occasionally emit
	// truncated JSON under load.
	FailureMalformed FailureKind = "malformed-response"

	// FailureNoProvider means no healthy provider serves the job's region
	// and model. Never retried; the job fails immediately.
	FailureNoProvider FailureKind = "no-provider"
)

// Retryable reports whether the queue should re-enqueue on this failure.
func (k FailureKind) Retryable() bool {
	return k != FailureNoProvider
}

// ExecutionError is a classified execution failure.
type ExecutionError struct {
	Kind FailureKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps err with a failure kind.
func NewExecutionError(kind FailureKind, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from an error chain, defaulting to
// transient for unclassified errors (the safe direction: an unknown
// failure gets retried rather than dead-lettered on first sight).
func KindOf(err error) FailureKind {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	return FailureTransient
}
