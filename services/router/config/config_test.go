// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, []string{"us-east", "eu-west", "asia-pacific"}, cfg.Regions)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Queue.BackoffCap.D())
	assert.Equal(t, 256, cfg.Queue.RegularLaneCapacity)
	assert.Zero(t, cfg.Queue.PriorityFairnessCap, "retries always win by default")
	assert.Equal(t, 120*time.Second, cfg.Executor.CallTimeout.D())
	assert.NoError(t, cfg.validate())
}

func TestDefaultScoring(t *testing.T) {
	s := DefaultScoring()
	assert.Equal(t, 200, s.MinSubstantiveLength)
	assert.NotEmpty(t, s.RefusalPhrases)
	assert.NotEmpty(t, s.RefusalPatterns)
	assert.Contains(t, s.KeywordCategories, "censorship")
	assert.Contains(t, s.KeywordCategories, "critical")
	assert.Greater(t, s.KeywordCategories["censorship"].Weight, 0.0)
	assert.Less(t, s.KeywordCategories["critical"].Weight, 0.0)
	assert.InDelta(t, 0.09, s.Thresholds.BiasVarianceHigh, 0.0001)
	assert.Len(t, s.DifferenceCategories, 3)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9999"
regions:
  - us-east
  - eu-west
providers:
  - id: us-beacon-1
    region: us-east
    kind: beacon
    endpoint: http://10.0.0.1:8080
    cost_per_token: 0.0001
    max_concurrent: 4
queue:
  max_retries: 5
  backoff_cap: 45s
  regular_lane_capacity: 64
  priority_fairness_cap: 8
  seed_avg_duration: 10s
health:
  probe_interval: 15s
  failure_threshold: 2
executor:
  call_timeout: 2m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, []string{"us-east", "eu-west"}, cfg.Regions)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "us-beacon-1", cfg.Providers[0].ID)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.Queue.BackoffCap.D())
	assert.Equal(t, 64, cfg.Queue.RegularLaneCapacity)
	assert.Equal(t, 8, cfg.Queue.PriorityFairnessCap)
	assert.Equal(t, 15*time.Second, cfg.Health.ProbeInterval.D())
	assert.Equal(t, 2, cfg.Health.FailureThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Executor.CallTimeout.D())
	// Omitted sections keep defaults.
	assert.Equal(t, 200, cfg.Scoring.MinSubstantiveLength)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Queue, cfg.Queue)
}

func TestLoad_PortEnvOverride(t *testing.T) {
	t.Setenv("VANTAGE_PORT", "7777")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no regions", `regions: []`},
		{"bad duration", "queue:\n  backoff_cap: soonish"},
		{"provider unknown region", `
providers:
  - id: p1
    region: mars
    endpoint: http://x
    max_concurrent: 1
`},
		{"provider empty id", `
providers:
  - region: us-east
    endpoint: http://x
    max_concurrent: 1
`},
		{"provider zero concurrency", `
providers:
  - id: p1
    region: us-east
    endpoint: http://x
    max_concurrent: 0
`},
		{"negative retries", "queue:\n  max_retries: -1"},
		{"negative lane capacity", "queue:\n  regular_lane_capacity: -5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/router.yaml")
	assert.Error(t, err)
}

func TestDuration_Roundtrip(t *testing.T) {
	out, err := Duration(90 * time.Second).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
