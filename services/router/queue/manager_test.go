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
	"testing"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitReq(region string) *datatypes.SubmitJobRequest {
	return &datatypes.SubmitJobRequest{
		Model:            "m",
		Prompt:           "p",
		MaxTokens:        128,
		RegionPreference: region,
	}
}

func TestManager_SubmitUnknownRegion(t *testing.T) {
	m := NewManager([]string{"us-east"}, newFakeRunner(), NewResultStore(time.Second),
		nil, nil, Options{})
	_, err := m.Submit(submitReq("mars"))
	assert.ErrorIs(t, err, ErrUnknownRegion)
}

func TestManager_SubmitPositionsAndWait(t *testing.T) {
	// No workers running: positions grow with the backlog.
	m := NewManager([]string{"us-east"}, newFakeRunner(), NewResultStore(10*time.Second),
		nil, nil, Options{RegularLaneCapacity: 16})

	for want := 1; want <= 3; want++ {
		resp, err := m.Submit(submitReq("us-east"))
		require.NoError(t, err)
		assert.Equal(t, datatypes.StatusQueued, resp.Status)
		assert.Equal(t, want, resp.QueuePosition)
		assert.InDelta(t, float64(want)*10, resp.EstimatedWaitSeconds, 0.001)

		res, ok := m.Results().Get(resp.JobID)
		require.True(t, ok)
		assert.Equal(t, datatypes.StatusQueued, res.Status)
	}
}

func TestManager_SubmitLaneFull(t *testing.T) {
	m := NewManager([]string{"us-east"}, newFakeRunner(), NewResultStore(time.Second),
		nil, nil, Options{RegularLaneCapacity: 1})

	_, err := m.Submit(submitReq("us-east"))
	require.NoError(t, err)

	resp, err := m.Submit(submitReq("us-east"))
	assert.ErrorIs(t, err, ErrLaneFull)
	assert.Nil(t, resp)
}

func TestManager_RegionsIsolated(t *testing.T) {
	runner := newFakeRunner()
	m := NewManager([]string{"us-east", "eu-west"}, runner, NewResultStore(time.Second),
		nil, nil, Options{MaxRetries: 0, RegularLaneCapacity: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.StartWorkers(ctx) }()

	a, err := m.Submit(submitReq("us-east"))
	require.NoError(t, err)
	b, err := m.Submit(submitReq("eu-west"))
	require.NoError(t, err)

	for _, id := range []string{a.JobID, b.JobID} {
		deadline := time.Now().Add(5 * time.Second)
		for {
			if res, ok := m.Results().Get(id); ok && res.Status.Terminal() {
				assert.Equal(t, datatypes.StatusCompleted, res.Status)
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s never completed", id)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestManager_Statuses(t *testing.T) {
	m := NewManager([]string{"eu-west", "us-east"}, newFakeRunner(), NewResultStore(time.Second),
		nil, nil, Options{RegularLaneCapacity: 8})
	_, err := m.Submit(submitReq("us-east"))
	require.NoError(t, err)

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	// Sorted by region name.
	assert.Equal(t, "eu-west", statuses[0].Region)
	assert.Equal(t, "us-east", statuses[1].Region)
	assert.Equal(t, 0, statuses[0].RegularDepth)
	assert.Equal(t, 1, statuses[1].RegularDepth)
}
