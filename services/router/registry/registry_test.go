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
	"testing"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spec(id, region string, cost float64) datatypes.ProviderSpec {
	return datatypes.ProviderSpec{
		ID:            id,
		Kind:          datatypes.ProviderKindBeacon,
		Region:        region,
		Endpoint:      "http://" + id + ".local",
		Models:        []string{"llama-3"},
		CostPerSecond: cost,
		MaxConcurrent: 2,
	}
}

func TestProvidersFor_CheapestFirst(t *testing.T) {
	r := New([]datatypes.ProviderSpec{
		spec("expensive", "us-east", 0.0010),
		spec("cheap", "us-east", 0.0003),
		spec("mid", "us-east", 0.0005),
	})

	got, err := r.ProvidersFor("us-east", "llama-3")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cheap", got[0].ID())
	assert.Equal(t, "mid", got[1].ID())
	assert.Equal(t, "expensive", got[2].ID())
}

func TestProvidersFor_EqualCostLoadBalances(t *testing.T) {
	r := New([]datatypes.ProviderSpec{
		spec("busy", "us-east", 0.0003),
		spec("idle", "us-east", 0.0003),
	})
	// Load the first provider with two in-flight calls.
	busy := r.Get("busy")
	require.True(t, busy.Acquire())
	require.True(t, busy.Acquire())

	got, err := r.ProvidersFor("us-east", "llama-3")
	require.NoError(t, err)
	assert.Equal(t, "idle", got[0].ID(),
		"equal-cost providers tie-break on in-flight count")
}

func TestProvidersFor_FiltersRegionModelHealth(t *testing.T) {
	r := New([]datatypes.ProviderSpec{
		spec("us", "us-east", 0.0003),
		spec("eu", "eu-west", 0.0003),
	})

	_, err := r.ProvidersFor("us-east", "unknown-model")
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	_, err = r.ProvidersFor("asia-pacific", "llama-3")
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	// An unhealthy provider is excluded entirely.
	r.Get("us").setHealth(datatypes.HealthUnhealthy, 3, time.Now())
	_, err = r.ProvidersFor("us-east", "llama-3")
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	// Degraded still routes: degraded means "failing probes but not
	// written off yet".
	r.Get("us").setHealth(datatypes.HealthDegraded, 1, time.Now())
	got, err := r.ProvidersFor("us-east", "llama-3")
	require.NoError(t, err)
	assert.Equal(t, "us", got[0].ID())
}

func TestProvider_AcquireRelease(t *testing.T) {
	r := New([]datatypes.ProviderSpec{spec("p", "us-east", 0.0003)})
	p := r.Get("p")

	assert.True(t, p.Acquire())
	assert.True(t, p.Acquire())
	assert.False(t, p.Acquire(), "third acquire exceeds MaxConcurrent=2")

	p.Release()
	assert.True(t, p.Acquire())

	p.Release()
	p.Release()
	p.Release() // unbalanced: clamps at zero instead of going negative
	assert.Equal(t, 0, p.InFlight())
}

func TestProvider_RecordResultEWMA(t *testing.T) {
	r := New([]datatypes.ProviderSpec{spec("p", "us-east", 0.0003)})
	p := r.Get("p")

	p.RecordResult(2*time.Second, true)
	st := p.Status()
	assert.InDelta(t, 2.0, st.AvgLatencySeconds, 0.001, "first sample seeds the EWMA")
	assert.InDelta(t, 1.0, st.SuccessRate, 0.001)

	p.RecordResult(4*time.Second, false)
	st = p.Status()
	assert.InDelta(t, 2.0*0.9+4.0*0.1, st.AvgLatencySeconds, 0.001)
	assert.InDelta(t, 1.0*0.9, st.SuccessRate, 0.001)
}

func TestStatuses_RegionFilter(t *testing.T) {
	r := New([]datatypes.ProviderSpec{
		spec("us", "us-east", 0.0003),
		spec("eu", "eu-west", 0.0003),
	})
	assert.Len(t, r.Statuses(""), 2)

	got := r.Statuses("eu-west")
	require.Len(t, got, 1)
	assert.Equal(t, "eu", got[0].ID)
	assert.Equal(t, datatypes.HealthHealthy, got[0].Health)
}
