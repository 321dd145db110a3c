// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry tracks inference providers and their runtime state.
//
// # Description
//
// The registry is the single owner of provider runtime state. Ownership is
// split by writer:
//
//   - Health fields (state, consecutive failures, last probe) are written
//     only by the health monitor (health.go).
//   - The in-flight counter is an atomic, incremented/decremented by the
//     executor around each call.
//   - Latency and success-rate EWMAs are written by the executor under the
//     provider's own mutex.
//
// Readers never hold locks across calls: selection and listing copy the
// state they need into immutable snapshots.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package registry

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
)

// ErrNoProviderAvailable is returned when no healthy provider serves the
// requested region and model. Callers must fail fast on it and never block
// waiting for a provider to recover.
var ErrNoProviderAvailable = errors.New("no healthy provider available")

// ewmaAlpha is the smoothing factor for latency and success-rate averages.
const ewmaAlpha = 0.1

// Provider is one registered provider plus its runtime state.
type Provider struct {
	Spec datatypes.ProviderSpec

	inFlight atomic.Int64

	mu          sync.Mutex
	health      datatypes.HealthState
	consecFails int
	lastProbe   time.Time
	avgLatency  float64 // seconds, EWMA
	successRate float64 // EWMA in [0,1]
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.Spec.ID }

// Acquire increments the in-flight counter. It returns false when the
// provider is already at its concurrency cap.
func (p *Provider) Acquire() bool {
	for {
		cur := p.inFlight.Load()
		if cur >= int64(p.Spec.MaxConcurrent) {
			return false
		}
		if p.inFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release decrements the in-flight counter. Must be called exactly once per
// successful Acquire, on every path including cancellation.
func (p *Provider) Release() {
	if p.inFlight.Add(-1) < 0 {
		// Unbalanced release is a programming error; clamp rather than
		// letting the counter go negative and skew load balancing.
		p.inFlight.Store(0)
	}
}

// InFlight returns the current in-flight call count.
func (p *Provider) InFlight() int {
	return int(p.inFlight.Load())
}

// RecordResult folds one call outcome into the latency and success EWMAs.
func (p *Provider) RecordResult(latency time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sec := latency.Seconds()
	if p.avgLatency == 0 {
		p.avgLatency = sec
	} else {
		p.avgLatency = p.avgLatency*(1-ewmaAlpha) + sec*ewmaAlpha
	}
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	p.successRate = p.successRate*(1-ewmaAlpha) + outcome*ewmaAlpha
}

// Health returns the current health state.
func (p *Provider) Health() datatypes.HealthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// setHealth is called by the health monitor only.
func (p *Provider) setHealth(state datatypes.HealthState, consecFails int, probedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health = state
	p.consecFails = consecFails
	p.lastProbe = probedAt
}

// Status copies the provider state into an immutable snapshot.
func (p *Provider) Status() datatypes.ProviderStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return datatypes.ProviderStatus{
		ID:                p.Spec.ID,
		Kind:              p.Spec.Kind,
		Region:            p.Spec.Region,
		Models:            p.Spec.Models,
		Health:            p.health,
		CostPerSecond:     p.Spec.CostPerSecond,
		MaxConcurrent:     p.Spec.MaxConcurrent,
		InFlight:          int(p.inFlight.Load()),
		AvgLatencySeconds: p.avgLatency,
		SuccessRate:       p.successRate,
		ConsecutiveFails:  p.consecFails,
		LastProbeAt:       p.lastProbe,
	}
}

// Registry holds all known providers. The provider set is fixed at
// construction; only per-provider runtime state changes afterwards.
type Registry struct {
	providers []*Provider
	byID      map[string]*Provider
}

// New builds a registry from provider specs. Providers start healthy with a
// perfect success rate; the first probe cycle corrects optimism.
func New(specs []datatypes.ProviderSpec) *Registry {
	r := &Registry{
		byID: make(map[string]*Provider, len(specs)),
	}
	for _, spec := range specs {
		p := &Provider{
			Spec:        spec,
			health:      datatypes.HealthHealthy,
			successRate: 1.0,
		}
		r.providers = append(r.providers, p)
		r.byID[spec.ID] = p
	}
	return r
}

// Get returns the provider with the given id, or nil.
func (r *Registry) Get(id string) *Provider {
	return r.byID[id]
}

// All returns every registered provider.
func (r *Registry) All() []*Provider {
	return r.providers
}

// ProvidersFor returns the healthy providers serving (region, model),
// sorted by ascending cost and tie-broken by ascending in-flight count so
// equal-cost providers load-balance. Returns ErrNoProviderAvailable when
// the list would be empty.
func (r *Registry) ProvidersFor(region, model string) ([]*Provider, error) {
	type ranked struct {
		p        *Provider
		inFlight int
	}
	var candidates []ranked
	for _, p := range r.providers {
		if p.Spec.Region != region || !p.Spec.Serves(model) {
			continue
		}
		if p.Health() == datatypes.HealthUnhealthy {
			continue
		}
		// In-flight is captured once so the sort comparator stays stable
		// even while calls complete concurrently.
		candidates = append(candidates, ranked{p: p, inFlight: p.InFlight()})
	}
	if len(candidates) == 0 {
		return nil, ErrNoProviderAvailable
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i].p.Spec.CostPerSecond, candidates[j].p.Spec.CostPerSecond
		if ci != cj {
			return ci < cj
		}
		return candidates[i].inFlight < candidates[j].inFlight
	})
	out := make([]*Provider, len(candidates))
	for i, c := range candidates {
		out[i] = c.p
	}
	return out, nil
}

// Statuses returns snapshots for every provider, optionally filtered by
// region (empty string means all).
func (r *Registry) Statuses(region string) []datatypes.ProviderStatus {
	out := make([]datatypes.ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		if region != "" && p.Spec.Region != region {
			continue
		}
		out = append(out, p.Status())
	}
	return out
}
