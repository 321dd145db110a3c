// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor performs single inference calls against selected
// providers.
//
// # Description
//
// The executor is the boundary between the region queues and the outside
// world. For one job it: selects a provider via the registry (healthy,
// cheapest first, load-balanced), increments the provider's in-flight
// counter, issues exactly one inference call bounded by the per-call
// timeout, and decrements the counter on every exit path.
//
// # Timeout and Zombie Discipline
//
// The call runs in its own goroutine; the executor waits on either the
// result or the deadline. When the deadline wins, the executor returns a
// transient failure and the context cancellation propagates into the HTTP
// call so the provider-side resource is released. The result channel is
// buffered: a provider that completes after abandonment writes into the
// buffer and the value is dropped with the goroutine, so it can never be
// attached to a later attempt's state.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the result of one successful inference call.
type Outcome struct {
	ProviderID string
	Response   string
	Duration   time.Duration
}

// AdapterResolver maps a provider kind to an adapter. Swappable for tests.
type AdapterResolver func(kind datatypes.ProviderKind) (Adapter, error)

// Executor routes one job to one provider and runs the call.
type Executor struct {
	registry    *registry.Registry
	resolve     AdapterResolver
	callTimeout time.Duration
}

// New creates an executor. A nil resolver uses AdapterFor.
func New(reg *registry.Registry, resolve AdapterResolver, callTimeout time.Duration) *Executor {
	if resolve == nil {
		resolve = AdapterFor
	}
	return &Executor{
		registry:    reg,
		resolve:     resolve,
		callTimeout: callTimeout,
	}
}

// Execute runs one inference attempt for the job. Failures come back as
// *ExecutionError so the caller can branch on FailureKind without knowing
// anything about vendors.
func (e *Executor) Execute(ctx context.Context, job *datatypes.InferenceJob) (*Outcome, error) {
	tracer := otel.Tracer("vantage/executor")
	ctx, span := tracer.Start(ctx, "Executor.Execute", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.region", job.Region),
		attribute.String("job.model", job.Model),
		attribute.Int("job.retry_count", job.RetryCount),
	))
	defer span.End()

	candidates, err := e.registry.ProvidersFor(job.Region, job.Model)
	if err != nil {
		span.RecordError(err)
		return nil, NewExecutionError(FailureNoProvider,
			fmt.Errorf("region %s, model %s: %w", job.Region, job.Model, err))
	}

	// Take the first candidate with spare capacity. Candidates are already
	// cost-sorted and load-balanced by the registry.
	var provider *registry.Provider
	for _, c := range candidates {
		if c.Acquire() {
			provider = c
			break
		}
	}
	if provider == nil {
		err := fmt.Errorf("all %d providers for region %s at concurrency cap", len(candidates), job.Region)
		span.RecordError(err)
		return nil, NewExecutionError(FailureTransient, err)
	}
	defer provider.Release()

	span.SetAttributes(attribute.String("provider.id", provider.ID()))

	adapter, err := e.resolve(provider.Spec.Kind)
	if err != nil {
		span.RecordError(err)
		return nil, NewExecutionError(FailureTransient, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	type callResult struct {
		response string
		err      error
	}
	// Buffered so an abandoned call's late write never blocks and never
	// reaches any consumer.
	resultCh := make(chan callResult, 1)
	start := time.Now()

	go func() {
		response, err := adapter.Infer(callCtx, provider.Spec.Endpoint, provider.Spec.Region, job)
		resultCh <- callResult{response: response, err: err}
	}()

	select {
	case <-callCtx.Done():
		latency := time.Since(start)
		provider.RecordResult(latency, false)
		err := fmt.Errorf("inference call abandoned after %s: %w", latency.Round(time.Millisecond), callCtx.Err())
		span.RecordError(err)
		slog.Warn("inference call abandoned",
			"job_id", job.ID, "provider", provider.ID(), "elapsed", latency)
		return nil, NewExecutionError(FailureTransient, err)

	case res := <-resultCh:
		latency := time.Since(start)
		if res.err != nil {
			provider.RecordResult(latency, false)
			span.RecordError(res.err)
			return nil, res.err
		}
		provider.RecordResult(latency, true)
		span.SetAttributes(attribute.Float64("call.duration_seconds", latency.Seconds()))
		return &Outcome{
			ProviderID: provider.ID(),
			Response:   res.response,
			Duration:   latency,
		}, nil
	}
}
