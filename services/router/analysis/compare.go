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
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/google/uuid"
)

// Comparer produces word-level diffs for ad-hoc pairwise comparisons and
// keeps a bounded ring of recent results for the recent-diffs endpoint.
type Comparer struct {
	mu     sync.Mutex
	recent []datatypes.CompareResponse
	limit  int
}

// NewComparer creates a comparer remembering up to limit recent results.
func NewComparer(limit int) *Comparer {
	if limit <= 0 {
		limit = 50
	}
	return &Comparer{limit: limit}
}

// Compare diffs two regional texts word-by-word and records the result in
// the recent ring. Similarity is the LCS ratio over word counts.
func (c *Comparer) Compare(req *datatypes.CompareRequest) datatypes.CompareResponse {
	aWords := strings.Fields(req.A.Text)
	bWords := strings.Fields(req.B.Text)
	segments, common := diffWords(aWords, bWords)

	similarity := 1.0
	if len(aWords)+len(bWords) > 0 {
		similarity = 2 * float64(common) / float64(len(aWords)+len(bWords))
	}

	resp := datatypes.CompareResponse{
		ID:         uuid.NewString(),
		Similarity: similarity,
		Segments:   segments,
		A:          req.A,
		B:          req.B,
		CreatedAt:  time.Now().UTC(),
	}

	c.mu.Lock()
	c.recent = append(c.recent, resp)
	if len(c.recent) > c.limit {
		c.recent = c.recent[len(c.recent)-c.limit:]
	}
	c.mu.Unlock()
	return resp
}

// Recent returns the stored comparisons, newest first.
func (c *Comparer) Recent() []datatypes.CompareResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]datatypes.CompareResponse, len(c.recent))
	for i, r := range c.recent {
		out[len(c.recent)-1-i] = r
	}
	return out
}

// diffWords aligns two word sequences via longest common subsequence and
// emits equal/delete/insert/replace segments, merging adjacent words of
// the same kind. Returns the segments and the LCS length.
func diffWords(a, b []string) ([]datatypes.DiffSegment, int) {
	// LCS table. Prompts are bounded (32KB) so quadratic space is fine.
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var segments []datatypes.DiffSegment
	appendSeg := func(kind, aText, bText string) {
		if len(segments) > 0 && segments[len(segments)-1].Type == kind {
			last := &segments[len(segments)-1]
			last.A = joinNonEmpty(last.A, aText)
			last.B = joinNonEmpty(last.B, bText)
			return
		}
		segments = append(segments, datatypes.DiffSegment{Type: kind, A: aText, B: bText})
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			appendSeg("equal", a[i], b[j])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			appendSeg("delete", a[i], "")
			i++
		default:
			appendSeg("insert", "", b[j])
			j++
		}
	}
	for ; i < n; i++ {
		appendSeg("delete", a[i], "")
	}
	for ; j < m; j++ {
		appendSeg("insert", "", b[j])
	}

	// Collapse adjacent delete+insert pairs into replace segments.
	merged := make([]datatypes.DiffSegment, 0, len(segments))
	for k := 0; k < len(segments); k++ {
		if k+1 < len(segments) &&
			((segments[k].Type == "delete" && segments[k+1].Type == "insert") ||
				(segments[k].Type == "insert" && segments[k+1].Type == "delete")) {
			merged = append(merged, datatypes.DiffSegment{
				Type: "replace",
				A:    joinNonEmpty(segments[k].A, segments[k+1].A),
				B:    joinNonEmpty(segments[k].B, segments[k+1].B),
			})
			k++
			continue
		}
		merged = append(merged, segments[k])
	}
	return merged, lcs[0][0]
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
