// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/observability"
	"golang.org/x/time/rate"
)

// =============================================================================
// Health Monitor
// =============================================================================

// ProbeFunc checks one provider and returns nil when it is serving.
// The context carries the probe timeout, which is independent of the job
// call timeout (a probe is a lightweight ping, not an inference).
type ProbeFunc func(ctx context.Context, p *Provider) error

// MonitorConfig tunes the health monitor.
type MonitorConfig struct {
	Interval         time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int
	ProbesPerSecond  float64
	// Metrics receives the per-provider health gauge. Nil-safe.
	Metrics *observability.RouterMetrics
}

// Monitor periodically probes every provider in the registry and is the
// sole writer of provider health fields.
//
// A probe success resets the consecutive-failure count and marks the
// provider healthy. A failure increments the count; once it reaches
// FailureThreshold the provider is unhealthy, in between it is degraded.
type Monitor struct {
	registry *Registry
	probe    ProbeFunc
	cfg      MonitorConfig
	limiter  *rate.Limiter
}

// NewMonitor creates a health monitor. A nil probe uses the default HTTP
// probe (GET on the provider's health URL).
func NewMonitor(reg *Registry, probe ProbeFunc, cfg MonitorConfig) *Monitor {
	if probe == nil {
		probe = HTTPProbe(&http.Client{})
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ProbesPerSecond <= 0 {
		cfg.ProbesPerSecond = 10
	}
	return &Monitor{
		registry: reg,
		probe:    probe,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ProbesPerSecond), 1),
	}
}

// Run probes all providers on a fixed interval until ctx is cancelled.
// One immediate sweep runs at startup so routing does not spend a full
// interval trusting the optimistic initial state.
func (m *Monitor) Run(ctx context.Context) error {
	m.Sweep(ctx)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep probes every provider once. Probes are rate-limited but otherwise
// independent: one slow provider does not delay verdicts for the rest
// beyond the limiter pacing.
func (m *Monitor) Sweep(ctx context.Context) {
	for _, p := range m.registry.All() {
		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		m.probeOne(ctx, p)
	}
}

func (m *Monitor) probeOne(ctx context.Context, p *Provider) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	err := m.probe(probeCtx, p)
	now := time.Now()

	p.mu.Lock()
	prev := p.health
	if err == nil {
		p.consecFails = 0
		p.health = datatypes.HealthHealthy
	} else {
		p.consecFails++
		if p.consecFails >= m.cfg.FailureThreshold {
			p.health = datatypes.HealthUnhealthy
		} else {
			p.health = datatypes.HealthDegraded
		}
	}
	p.lastProbe = now
	next := p.health
	fails := p.consecFails
	p.mu.Unlock()

	m.cfg.Metrics.SetProviderHealth(p.Spec.ID, p.Spec.Region, healthGaugeValue(next))

	if err != nil {
		slog.Warn("provider probe failed",
			"provider", p.Spec.ID, "region", p.Spec.Region,
			"consecutive_failures", fails, "health", next, "error", err)
	}
	if prev != next {
		slog.Info("provider health transition",
			"provider", p.Spec.ID, "region", p.Spec.Region,
			"from", prev, "to", next)
	}
}

// healthGaugeValue maps a health state onto the gauge scale: 1 healthy,
// 0.5 degraded, 0 unhealthy.
func healthGaugeValue(h datatypes.HealthState) float64 {
	switch h {
	case datatypes.HealthHealthy:
		return 1
	case datatypes.HealthDegraded:
		return 0.5
	default:
		return 0
	}
}

// =============================================================================
// Default HTTP Probe
// =============================================================================

// HTTPProbe returns a ProbeFunc that GETs the provider's health URL and
// accepts any 200 response. When the body is JSON with a "status" field,
// only "healthy" or "ok" count as success (the regional workers report
// degraded states with a 200).
func HTTPProbe(client *http.Client) ProbeFunc {
	return func(ctx context.Context, p *Provider) error {
		url := p.Spec.HealthURL
		if url == "" {
			url = strings.TrimRight(p.Spec.Endpoint, "/") + "/health"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			// A non-JSON 200 is still a live endpoint.
			return nil
		}
		if body.Status != "" && body.Status != "healthy" && body.Status != "ok" {
			return fmt.Errorf("probe %s: reported status %q", url, body.Status)
		}
		return nil
	}
}
