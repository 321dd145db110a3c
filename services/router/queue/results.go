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
	"sync"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
)

// =============================================================================
// Result Store
// =============================================================================

// ResultStore is the ephemeral job-result map. Results are created at
// submit time and mutated only by the owning region worker; pollers read
// snapshots. Nothing survives a process restart; callers needing
// durability persist terminal results externally.
//
// # Thread Safety
//
// Guarded by one RWMutex. Writers are the submit path (Create) and the
// single worker goroutine per region; single-writer-per-key holds because
// a job belongs to exactly one region for its whole life.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*datatypes.JobResult

	// execIndex maps model -> questionID -> region -> jobID of the most
	// recent job for that cell, for execution-set assembly.
	execIndex map[string]map[string]map[string]string

	// Per-region running average of completed-job durations, used for
	// estimated-wait math. Seeded until the first real completion.
	seedAvg   time.Duration
	durSum    map[string]time.Duration
	durCount  map[string]int
	completed map[string]uint64
	failed    map[string]uint64
}

// NewResultStore creates a store with the given seed average duration.
func NewResultStore(seedAvg time.Duration) *ResultStore {
	if seedAvg <= 0 {
		seedAvg = 30 * time.Second
	}
	return &ResultStore{
		results:   make(map[string]*datatypes.JobResult),
		execIndex: make(map[string]map[string]map[string]string),
		seedAvg:   seedAvg,
		durSum:    make(map[string]time.Duration),
		durCount:  make(map[string]int),
		completed: make(map[string]uint64),
		failed:    make(map[string]uint64),
	}
}

// Create registers a queued result for a freshly submitted job.
func (s *ResultStore) Create(job *datatypes.InferenceJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[job.ID] = &datatypes.JobResult{
		JobID:      job.ID,
		Status:     datatypes.StatusQueued,
		Region:     job.Region,
		Model:      job.Model,
		QuestionID: job.QuestionID,
	}
	if job.QuestionID != "" {
		byQuestion, ok := s.execIndex[job.Model]
		if !ok {
			byQuestion = make(map[string]map[string]string)
			s.execIndex[job.Model] = byQuestion
		}
		byRegion, ok := byQuestion[job.QuestionID]
		if !ok {
			byRegion = make(map[string]string)
			byQuestion[job.QuestionID] = byRegion
		}
		byRegion[job.Region] = job.ID
	}
}

// Get returns a copy of the result for jobID.
func (s *ResultStore) Get(jobID string) (datatypes.JobResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[jobID]
	if !ok {
		return datatypes.JobResult{}, false
	}
	return *res, true
}

// MarkProcessing transitions a job to processing. Worker-only.
func (s *ResultStore) MarkProcessing(jobID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[jobID]; ok {
		res.Status = datatypes.StatusProcessing
		res.StartedAt = at
	}
}

// MarkRetryScheduled moves a failed attempt back to queued state while its
// backoff timer runs. Worker-only.
func (s *ResultStore) MarkRetryScheduled(jobID string, retryCount int, attemptErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[jobID]; ok {
		res.Status = datatypes.StatusQueued
		res.RetryCount = retryCount
		res.Error = attemptErr
	}
}

// Complete writes the terminal success state. Worker-only.
func (s *ResultStore) Complete(jobID, providerID, response string, startedAt, completedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[jobID]
	if !ok {
		return
	}
	res.Status = datatypes.StatusCompleted
	res.ProviderID = providerID
	res.Response = response
	res.Error = ""
	res.StartedAt = startedAt
	res.CompletedAt = completedAt
	res.DurationSec = completedAt.Sub(startedAt).Seconds()
	s.durSum[res.Region] += completedAt.Sub(startedAt)
	s.durCount[res.Region]++
	s.completed[res.Region]++
}

// Fail writes the terminal failure state. Worker-only.
func (s *ResultStore) Fail(jobID, providerID, errMsg string, retryCount int, completedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[jobID]
	if !ok {
		return
	}
	res.Status = datatypes.StatusFailed
	res.ProviderID = providerID
	res.Error = errMsg
	res.RetryCount = retryCount
	res.CompletedAt = completedAt
	if !res.StartedAt.IsZero() {
		res.DurationSec = completedAt.Sub(res.StartedAt).Seconds()
	}
	s.failed[res.Region]++
}

// AvgDuration returns the running average completed-job duration for a
// region, or the seed value before any completion.
func (s *ResultStore) AvgDuration(region string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.durCount[region] == 0 {
		return s.seedAvg
	}
	return s.durSum[region] / time.Duration(s.durCount[region])
}

// Counts returns the completed/failed counters for a region.
func (s *ResultStore) Counts(region string) (completed, failed uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed[region], s.failed[region]
}

// ExecutionSet assembles the per-region results for (model, questionID)
// over the requested regions. Regions without any recorded job land in
// MissingRegions. Partiality is explicit, never silently dropped.
func (s *ResultStore) ExecutionSet(model, questionID string, regions []string) *datatypes.RegionExecutionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := &datatypes.RegionExecutionSet{
		Model:      model,
		QuestionID: questionID,
		Results:    make(map[string]*datatypes.JobResult),
	}
	byRegion := s.execIndex[model][questionID]
	for _, region := range regions {
		jobID, ok := byRegion[region]
		if !ok {
			set.MissingRegions = append(set.MissingRegions, region)
			continue
		}
		res, ok := s.results[jobID]
		if !ok {
			set.MissingRegions = append(set.MissingRegions, region)
			continue
		}
		copied := *res
		set.Results[region] = &copied
	}
	return set
}
