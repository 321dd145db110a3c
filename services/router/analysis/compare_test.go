// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"fmt"
	"testing"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compareReq(a, b string) *datatypes.CompareRequest {
	return &datatypes.CompareRequest{
		A: datatypes.RegionText{Region: "us-east", Text: a},
		B: datatypes.RegionText{Region: "asia-pacific", Text: b},
	}
}

func TestCompare_IdenticalTexts(t *testing.T) {
	c := NewComparer(10)
	resp := c.Compare(compareReq("tanks entered the square", "tanks entered the square"))

	assert.InDelta(t, 1.0, resp.Similarity, 0.0001)
	require.Len(t, resp.Segments, 1)
	assert.Equal(t, "equal", resp.Segments[0].Type)
	assert.Equal(t, "tanks entered the square", resp.Segments[0].A)
}

func TestCompare_DisjointTexts(t *testing.T) {
	c := NewComparer(10)
	resp := c.Compare(compareReq("alpha bravo", "charlie delta"))

	assert.InDelta(t, 0.0, resp.Similarity, 0.0001)
	require.Len(t, resp.Segments, 1)
	assert.Equal(t, "replace", resp.Segments[0].Type)
	assert.Equal(t, "alpha bravo", resp.Segments[0].A)
	assert.Equal(t, "charlie delta", resp.Segments[0].B)
}

func TestCompare_MixedDiff(t *testing.T) {
	c := NewComparer(10)
	resp := c.Compare(compareReq(
		"hundreds were killed that night",
		"hundreds were reportedly injured that night",
	))

	// Shared prefix, replaced middle, shared suffix.
	require.GreaterOrEqual(t, len(resp.Segments), 3)
	assert.Equal(t, "equal", resp.Segments[0].Type)
	assert.Equal(t, "hundreds were", resp.Segments[0].A)
	last := resp.Segments[len(resp.Segments)-1]
	assert.Equal(t, "equal", last.Type)
	assert.Equal(t, "that night", last.A)
	assert.Greater(t, resp.Similarity, 0.5)
	assert.Less(t, resp.Similarity, 1.0)
}

func TestCompare_EmptySides(t *testing.T) {
	c := NewComparer(10)

	resp := c.Compare(compareReq("", "something appeared"))
	assert.InDelta(t, 0.0, resp.Similarity, 0.0001)
	require.Len(t, resp.Segments, 1)
	assert.Equal(t, "insert", resp.Segments[0].Type)

	resp = c.Compare(compareReq("", ""))
	assert.InDelta(t, 1.0, resp.Similarity, 0.0001)
	assert.Empty(t, resp.Segments)
}

func TestComparer_RecentRing(t *testing.T) {
	c := NewComparer(3)
	for i := 0; i < 5; i++ {
		c.Compare(compareReq(fmt.Sprintf("text %d", i), "other"))
	}

	recent := c.Recent()
	require.Len(t, recent, 3, "ring keeps only the newest entries")
	// Newest first.
	assert.Equal(t, "text 4", recent[0].A.Text)
	assert.Equal(t, "text 2", recent[2].A.Text)
}
