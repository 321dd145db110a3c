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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter scripts one adapter behavior per test.
type fakeAdapter struct {
	response string
	err      error
	delay    time.Duration
	calls    int
}

func (f *fakeAdapter) Infer(ctx context.Context, endpoint, region string, job *datatypes.InferenceJob) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func resolverFor(a Adapter) AdapterResolver {
	return func(kind datatypes.ProviderKind) (Adapter, error) { return a, nil }
}

func testRegistry(maxConcurrent int) *registry.Registry {
	return registry.New([]datatypes.ProviderSpec{{
		ID:            "prov-1",
		Kind:          datatypes.ProviderKindBeacon,
		Region:        "us-east",
		Endpoint:      "http://prov-1.local",
		Models:        []string{"llama-3"},
		CostPerSecond: 0.0003,
		MaxConcurrent: maxConcurrent,
	}})
}

func testJob() *datatypes.InferenceJob {
	return &datatypes.InferenceJob{ID: "j1", Region: "us-east", Model: "llama-3"}
}

func TestExecute_Success(t *testing.T) {
	reg := testRegistry(1)
	adapter := &fakeAdapter{response: "hello"}
	e := New(reg, resolverFor(adapter), time.Second)

	out, err := e.Execute(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "prov-1", out.ProviderID)
	assert.Equal(t, "hello", out.Response)
	assert.Equal(t, 0, reg.Get("prov-1").InFlight(), "in-flight released after the call")
}

func TestExecute_EmptyResponseIsSuccess(t *testing.T) {
	// A well-formed completion with empty text is a valid answer, not a
	// failure; the analysis layer decides what emptiness means.
	reg := testRegistry(1)
	e := New(reg, resolverFor(&fakeAdapter{response: ""}), time.Second)

	out, err := e.Execute(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "", out.Response)
}

func TestExecute_NoProvider(t *testing.T) {
	reg := testRegistry(1)
	e := New(reg, resolverFor(&fakeAdapter{}), time.Second)

	_, err := e.Execute(context.Background(), &datatypes.InferenceJob{
		ID: "j1", Region: "asia-pacific", Model: "llama-3",
	})
	require.Error(t, err)
	assert.Equal(t, FailureNoProvider, KindOf(err))
	assert.ErrorIs(t, err, registry.ErrNoProviderAvailable)
}

func TestExecute_AllProvidersAtCap(t *testing.T) {
	reg := testRegistry(1)
	require.True(t, reg.Get("prov-1").Acquire())
	e := New(reg, resolverFor(&fakeAdapter{}), time.Second)

	_, err := e.Execute(context.Background(), testJob())
	require.Error(t, err)
	// Capacity exhaustion is transient: the retry lanes handle it.
	assert.Equal(t, FailureTransient, KindOf(err))
}

func TestExecute_TimeoutIsTransientAndReleases(t *testing.T) {
	reg := testRegistry(1)
	adapter := &fakeAdapter{response: "late", delay: 500 * time.Millisecond}
	e := New(reg, resolverFor(adapter), 20*time.Millisecond)

	start := time.Now()
	_, err := e.Execute(context.Background(), testJob())
	require.Error(t, err)
	assert.Equal(t, FailureTransient, KindOf(err))
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"abandonment must not wait for the slow call")

	// The provider slot must be free for the next attempt even though the
	// abandoned goroutine is still running.
	assert.Eventually(t, func() bool {
		return reg.Get("prov-1").InFlight() == 0
	}, time.Second, 5*time.Millisecond)

	st := reg.Get("prov-1").Status()
	assert.Less(t, st.SuccessRate, 1.0, "abandonment counts as a failed call")
}

func TestExecute_AdapterErrorPassesThrough(t *testing.T) {
	reg := testRegistry(1)
	wrapped := NewExecutionError(FailureMalformed, errors.New("truncated JSON"))
	e := New(reg, resolverFor(&fakeAdapter{err: wrapped}), time.Second)

	_, err := e.Execute(context.Background(), testJob())
	require.Error(t, err)
	assert.Equal(t, FailureMalformed, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, FailureTransient, KindOf(errors.New("anything")))
	assert.Equal(t, FailureNoProvider,
		KindOf(NewExecutionError(FailureNoProvider, errors.New("x"))))
	// Wrapped one level deeper still classifies.
	inner := NewExecutionError(FailureMalformed, errors.New("x"))
	assert.Equal(t, FailureMalformed, KindOf(errors.Join(errors.New("outer"), inner)))
}

func TestFailureKind_Retryable(t *testing.T) {
	assert.True(t, FailureTransient.Retryable())
	assert.True(t, FailureMalformed.Retryable())
	assert.False(t, FailureNoProvider.Retryable())
}
