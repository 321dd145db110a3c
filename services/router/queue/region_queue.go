// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package queue implements the per-region job queues.
//
// # Description
//
// Each target region owns one RegionQueue with two lanes: a bounded
// regular lane (FIFO) and an unbounded priority lane for retries. A single
// worker goroutine per region drains the lanes, so at most one job
// executes per region at any instant; cross-region parallelism comes from
// running the region queues concurrently.
//
// # Lane Discipline
//
// The worker checks the priority lane non-blockingly before blocking on
// the regular lane. A job's retry is therefore dequeued before any regular
// job enqueued earlier in that region; otherwise a retry could sit behind
// an unrelated job's entire backlog. The policy is unconditional by
// default; QueueConfig.PriorityFairnessCap bounds consecutive priority
// dequeues for deployments that cannot tolerate regular-lane starvation
// under a sustained failure storm.
//
// # Retry Policy
//
// A transient failure increments the retry count and schedules a re-enqueue
// to the priority lane after min(2^retry seconds, backoff cap), expressed
// as a delayed send (time.AfterFunc) rather than a sleep in the worker
// loop, so the worker keeps draining while backoffs run. Once the retry
// count reaches MaxRetries the job is dead-lettered with a terminal failed
// result. NoProvider failures are terminal immediately, since there is
// nothing to wait for.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/executor"
	"github.com/AleutianAI/vantage/services/router/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Runner executes one inference attempt. Satisfied by *executor.Executor;
// tests substitute fakes.
type Runner interface {
	Execute(ctx context.Context, job *datatypes.InferenceJob) (*executor.Outcome, error)
}

// EventFunc receives job lifecycle events (websocket broadcast). May be nil.
type EventFunc func(datatypes.JobEvent)

// Options tunes one region queue.
type Options struct {
	MaxRetries          int
	BackoffCap          time.Duration
	RegularLaneCapacity int
	// PriorityFairnessCap bounds consecutive priority dequeues; 0 means
	// retries always win.
	PriorityFairnessCap int
}

// ErrLaneFull is returned by Enqueue when the bounded regular lane is at
// capacity. The submit handler maps it to 429.
var ErrLaneFull = fmt.Errorf("regular lane at capacity")

// RegionQueue is the sequential job processor for one region.
type RegionQueue struct {
	region  string
	opts    Options
	runner  Runner
	results *ResultStore
	events  EventFunc
	metrics *observability.RouterMetrics

	regular chan *datatypes.InferenceJob

	prioMu   sync.Mutex
	priority []*datatypes.InferenceJob
	prioSig  chan struct{}

	// backoffs counts scheduled-but-not-yet-enqueued retries so queue
	// position math sees them.
	backoffs atomic.Int64

	processing   atomic.Bool
	currentMu    sync.Mutex
	currentJobID string

	// sleep is swappable in tests to avoid real backoff waits.
	sleep func(d time.Duration, fn func())
}

// NewRegionQueue creates the queue for one region.
func NewRegionQueue(region string, runner Runner, results *ResultStore, events EventFunc,
	metrics *observability.RouterMetrics, opts Options) *RegionQueue {

	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RegularLaneCapacity <= 0 {
		opts.RegularLaneCapacity = 256
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 30 * time.Second
	}
	return &RegionQueue{
		region:  region,
		opts:    opts,
		runner:  runner,
		results: results,
		events:  events,
		metrics: metrics,
		regular: make(chan *datatypes.InferenceJob, opts.RegularLaneCapacity),
		prioSig: make(chan struct{}, 1),
		sleep: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Region returns the region this queue serves.
func (q *RegionQueue) Region() string { return q.region }

// =============================================================================
// Enqueue
// =============================================================================

// Enqueue adds a job to the regular lane. Non-blocking: a full lane
// returns ErrLaneFull instead of stalling the submit handler.
func (q *RegionQueue) Enqueue(job *datatypes.InferenceJob) error {
	job.Lane = datatypes.LaneRegular
	job.EnqueuedAt = time.Now()
	select {
	case q.regular <- job:
		q.metrics.SetQueueDepth(q.region, string(datatypes.LaneRegular), len(q.regular))
		q.publish(datatypes.JobEvent{
			Type: "queued", JobID: job.ID, Region: q.region, Timestamp: time.Now(),
		})
		return nil
	default:
		return ErrLaneFull
	}
}

// enqueuePriority appends a retry to the unbounded priority lane.
func (q *RegionQueue) enqueuePriority(job *datatypes.InferenceJob) {
	job.Lane = datatypes.LaneRetry
	q.prioMu.Lock()
	q.priority = append(q.priority, job)
	depth := len(q.priority)
	q.prioMu.Unlock()
	q.metrics.SetQueueDepth(q.region, string(datatypes.LaneRetry), depth)
	select {
	case q.prioSig <- struct{}{}:
	default:
	}
}

// popPriority removes the head of the priority lane, or returns nil.
func (q *RegionQueue) popPriority() *datatypes.InferenceJob {
	q.prioMu.Lock()
	defer q.prioMu.Unlock()
	if len(q.priority) == 0 {
		return nil
	}
	job := q.priority[0]
	q.priority = q.priority[1:]
	q.metrics.SetQueueDepth(q.region, string(datatypes.LaneRetry), len(q.priority))
	return job
}

// popRegular removes the head of the regular lane without blocking.
func (q *RegionQueue) popRegular() *datatypes.InferenceJob {
	select {
	case job := <-q.regular:
		q.metrics.SetQueueDepth(q.region, string(datatypes.LaneRegular), len(q.regular))
		return job
	default:
		return nil
	}
}

// Depths returns the current lane depths. Scheduled backoffs count toward
// the priority lane so queue positions do not undercount.
func (q *RegionQueue) Depths() (regular, priority int) {
	q.prioMu.Lock()
	priority = len(q.priority)
	q.prioMu.Unlock()
	return len(q.regular), priority + int(q.backoffs.Load())
}

// Status snapshots the queue for GET /v1/queues.
func (q *RegionQueue) Status() datatypes.QueueStatus {
	regular, priority := q.Depths()
	completed, failed := q.results.Counts(q.region)
	q.currentMu.Lock()
	current := q.currentJobID
	q.currentMu.Unlock()
	return datatypes.QueueStatus{
		Region:         q.region,
		RegularDepth:   regular,
		PriorityDepth:  priority,
		Processing:     q.processing.Load(),
		CurrentJobID:   current,
		CompletedCount: completed,
		FailedCount:    failed,
		AvgDurationSec: q.results.AvgDuration(q.region).Seconds(),
	}
}

// =============================================================================
// Worker
// =============================================================================

// Run drains the lanes until ctx is cancelled. It is the only goroutine
// that executes jobs for this region.
func (q *RegionQueue) Run(ctx context.Context) error {
	slog.Info("region queue worker started", "region", q.region)
	consecPriority := 0
	for {
		job := q.next(ctx, &consecPriority)
		if job == nil {
			slog.Info("region queue worker stopped", "region", q.region)
			return ctx.Err()
		}
		q.process(ctx, job)
	}
}

// next returns the next job to run, honoring the lane discipline, or nil
// when ctx is done. consecPriority persists across calls so the fairness
// cap sees the full run of priority dequeues.
func (q *RegionQueue) next(ctx context.Context, consecPriority *int) *datatypes.InferenceJob {
	for {
		if ctx.Err() != nil {
			return nil
		}

		// Fairness cap: after K consecutive priority dequeues, let one
		// regular job through if there is one.
		if q.opts.PriorityFairnessCap > 0 && *consecPriority >= q.opts.PriorityFairnessCap {
			if job := q.popRegular(); job != nil {
				*consecPriority = 0
				return job
			}
		}

		if job := q.popPriority(); job != nil {
			*consecPriority++
			return job
		}

		// Priority lane empty: block on the regular lane, but wake on the
		// priority signal so a retry landing mid-wait still wins the next
		// dequeue.
		select {
		case <-ctx.Done():
			return nil
		case job := <-q.regular:
			q.metrics.SetQueueDepth(q.region, string(datatypes.LaneRegular), len(q.regular))
			*consecPriority = 0
			return job
		case <-q.prioSig:
			// Loop around; popPriority re-checks under the lock.
		}
	}
}

// process runs one job to a next state: completed, retry scheduled, or
// dead-lettered.
func (q *RegionQueue) process(ctx context.Context, job *datatypes.InferenceJob) {
	tracer := otel.Tracer("vantage/queue")
	ctx, span := tracer.Start(ctx, "RegionQueue.process")
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.region", q.region),
		attribute.String("job.lane", string(job.Lane)),
		attribute.Int("job.retry_count", job.RetryCount),
	)
	defer span.End()

	q.processing.Store(true)
	q.currentMu.Lock()
	q.currentJobID = job.ID
	q.currentMu.Unlock()
	defer func() {
		q.processing.Store(false)
		q.currentMu.Lock()
		q.currentJobID = ""
		q.currentMu.Unlock()
	}()

	started := time.Now()
	job.LastAttempt = started
	q.results.MarkProcessing(job.ID, started)
	q.publish(datatypes.JobEvent{
		Type: "processing", JobID: job.ID, Region: q.region,
		RetryCount: job.RetryCount, Timestamp: started,
	})
	slog.Info("processing job", "region", q.region, "job_id", job.ID,
		"model", job.Model, "lane", job.Lane, "retry_count", job.RetryCount)

	outcome, err := q.runner.Execute(ctx, job)
	completedAt := time.Now()

	if err == nil {
		q.results.Complete(job.ID, outcome.ProviderID, outcome.Response, started, completedAt)
		q.metrics.RecordJob(q.region, string(datatypes.StatusCompleted))
		q.metrics.RecordInference(q.region, outcome.ProviderID, outcome.Duration.Seconds())
		q.publish(datatypes.JobEvent{
			Type: "completed", JobID: job.ID, Region: q.region,
			ProviderID: outcome.ProviderID, Timestamp: completedAt,
		})
		slog.Info("completed job", "region", q.region, "job_id", job.ID,
			"provider", outcome.ProviderID, "duration", outcome.Duration)
		return
	}

	span.RecordError(err)
	kind := executor.KindOf(err)

	if !kind.Retryable() || job.RetryCount >= q.opts.MaxRetries {
		q.deadLetter(job, kind, err, completedAt)
		return
	}

	job.RetryCount++
	backoff := q.backoffFor(job.RetryCount)
	q.results.MarkRetryScheduled(job.ID, job.RetryCount, err.Error())
	q.metrics.RecordRetry(q.region)
	q.publish(datatypes.JobEvent{
		Type: "retry_scheduled", JobID: job.ID, Region: q.region,
		RetryCount: job.RetryCount, Error: err.Error(), Timestamp: completedAt,
	})
	slog.Warn("job failed, retry scheduled", "region", q.region, "job_id", job.ID,
		"retry_count", job.RetryCount, "max_retries", q.opts.MaxRetries,
		"backoff", backoff, "kind", kind, "error", err)

	// Delayed send, not an in-loop sleep: the worker moves on while the
	// backoff runs.
	q.backoffs.Add(1)
	q.sleep(backoff, func() {
		q.backoffs.Add(-1)
		q.enqueuePriority(job)
	})
}

// deadLetter writes the terminal failed result.
func (q *RegionQueue) deadLetter(job *datatypes.InferenceJob, kind executor.FailureKind, err error, at time.Time) {
	q.results.Fail(job.ID, "", err.Error(), job.RetryCount, at)
	q.metrics.RecordJob(q.region, string(datatypes.StatusFailed))
	if kind.Retryable() {
		q.metrics.RecordDeadLetter(q.region)
		slog.Error("job dead-lettered", "region", q.region, "job_id", job.ID,
			"retry_count", job.RetryCount, "error", err)
	} else {
		slog.Error("job failed with no provider available", "region", q.region,
			"job_id", job.ID, "error", err)
	}
	q.publish(datatypes.JobEvent{
		Type: "failed", JobID: job.ID, Region: q.region,
		RetryCount: job.RetryCount, Error: err.Error(), Timestamp: at,
	})
}

// backoffFor computes min(2^retry seconds, cap).
func (q *RegionQueue) backoffFor(retryCount int) time.Duration {
	if retryCount > 30 {
		return q.opts.BackoffCap
	}
	d := time.Duration(1<<uint(retryCount)) * time.Second
	if d > q.opts.BackoffCap {
		return q.opts.BackoffCap
	}
	return d
}

func (q *RegionQueue) publish(ev datatypes.JobEvent) {
	if q.events != nil {
		q.events(ev)
	}
}
