// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the router service.
//
// This file contains provider descriptions shared between the registry,
// the health monitor and the provider-listing endpoint.
package datatypes

import "time"

// =============================================================================
// Provider Types
// =============================================================================

// ProviderKind identifies the wire protocol a provider endpoint speaks.
type ProviderKind string

const (
	// ProviderKindBeacon is the plain JSON inference protocol used by the
	// regional GPU workers ({model, prompt, temperature, max_tokens} in,
	// {status|success, response|output|text, error} out).
	ProviderKindBeacon ProviderKind = "beacon"

	// ProviderKindOpenAI is an OpenAI-compatible chat completion endpoint.
	ProviderKindOpenAI ProviderKind = "openai"
)

// HealthState is the coarse health classification of a provider.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// ProviderSpec is the static description of an inference provider as it
// appears in the configuration file. Mutable runtime state (health,
// in-flight count, latency) lives in the registry, not here.
type ProviderSpec struct {
	ID            string       `yaml:"id" json:"id"`
	Kind          ProviderKind `yaml:"kind" json:"kind"`
	Region        string       `yaml:"region" json:"region"`
	Endpoint      string       `yaml:"endpoint" json:"endpoint"`
	HealthURL     string       `yaml:"health_url,omitempty" json:"-"`
	Models        []string     `yaml:"models" json:"models"`
	CostPerSecond float64      `yaml:"cost_per_second" json:"cost_per_second"`
	MaxConcurrent int          `yaml:"max_concurrent" json:"max_concurrent"`
}

// Serves reports whether the provider advertises the given model.
// An empty model set means the provider serves everything in its region.
func (s ProviderSpec) Serves(model string) bool {
	if len(s.Models) == 0 {
		return true
	}
	for _, m := range s.Models {
		if m == model {
			return true
		}
	}
	return false
}

// ProviderStatus is the externally visible snapshot of one provider,
// returned by GET /v1/providers and consumed by the portal dashboard.
//
// AvgLatencySeconds and SuccessRate are exponentially weighted moving
// averages updated after every inference call (alpha 0.1).
type ProviderStatus struct {
	ID                string       `json:"id"`
	Kind              ProviderKind `json:"kind"`
	Region            string       `json:"region"`
	Models            []string     `json:"models,omitempty"`
	Health            HealthState  `json:"health"`
	CostPerSecond     float64      `json:"cost_per_second"`
	MaxConcurrent     int          `json:"max_concurrent"`
	InFlight          int          `json:"in_flight"`
	AvgLatencySeconds float64      `json:"avg_latency_seconds"`
	SuccessRate       float64      `json:"success_rate"`
	ConsecutiveFails  int          `json:"consecutive_failures"`
	LastProbeAt       time.Time    `json:"last_probe_at"`
}
