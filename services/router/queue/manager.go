// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownRegion is returned by Submit for a region not in the
// configured set.
var ErrUnknownRegion = fmt.Errorf("unknown region")

// Manager owns one RegionQueue per configured region plus the shared
// result store. It is the single entry point the HTTP handlers use.
type Manager struct {
	queues  map[string]*RegionQueue
	regions []string
	results *ResultStore
}

// NewManager builds the per-region queues. Regions are fixed at startup;
// submits to any other region fail fast with ErrUnknownRegion.
func NewManager(regions []string, runner Runner, results *ResultStore, events EventFunc,
	metrics *observability.RouterMetrics, opts Options) *Manager {

	m := &Manager{
		queues:  make(map[string]*RegionQueue, len(regions)),
		regions: append([]string(nil), regions...),
		results: results,
	}
	sort.Strings(m.regions)
	for _, region := range m.regions {
		m.queues[region] = NewRegionQueue(region, runner, results, events, metrics, opts)
	}
	return m
}

// Results exposes the shared result store.
func (m *Manager) Results() *ResultStore { return m.results }

// Regions returns the configured regions, sorted.
func (m *Manager) Regions() []string { return m.regions }

// StartWorkers launches one worker goroutine per region and blocks until
// ctx is cancelled.
func (m *Manager) StartWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range m.queues {
		q := q
		g.Go(func() error {
			err := q.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Submit validates the region, creates the job and its queued result, and
// enqueues it on the region's regular lane.
//
// Queue position counts every job ahead of this one in the region: both
// lane depths (including retries whose backoff is still running) plus the
// job currently processing. Estimated wait is position times the region's
// running average job duration. It is an estimate, not a promise.
func (m *Manager) Submit(req *datatypes.SubmitJobRequest) (*datatypes.SubmitJobResponse, error) {
	q, ok := m.queues[req.RegionPreference]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, req.RegionPreference)
	}

	job := &datatypes.InferenceJob{
		ID:           uuid.NewString(),
		Region:       req.RegionPreference,
		Model:        req.Model,
		QuestionID:   req.QuestionID,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}

	regular, priority := q.Depths()
	position := regular + priority + 1
	if q.processing.Load() {
		position++
	}

	m.results.Create(job)
	if err := q.Enqueue(job); err != nil {
		// Roll the result to failed so pollers are not left with a
		// queued entry for a job that never entered a lane.
		m.results.Fail(job.ID, "", err.Error(), 0, time.Now())
		return nil, err
	}

	wait := time.Duration(position) * m.results.AvgDuration(req.RegionPreference)
	return &datatypes.SubmitJobResponse{
		JobID:                job.ID,
		Status:               datatypes.StatusQueued,
		Region:               req.RegionPreference,
		QueuePosition:        position,
		EstimatedWaitSeconds: wait.Seconds(),
	}, nil
}

// Statuses snapshots every region queue, sorted by region name.
func (m *Manager) Statuses() []datatypes.QueueStatus {
	statuses := make([]datatypes.QueueStatus, 0, len(m.regions))
	for _, region := range m.regions {
		statuses = append(statuses, m.queues[region].Status())
	}
	return statuses
}
