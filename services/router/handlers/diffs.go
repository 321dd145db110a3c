// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/AleutianAI/vantage/services/router/analysis"
	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/queue"
	"github.com/gin-gonic/gin"
)

// GetCrossRegionDiff handles GET /v1/diffs/cross-region: assemble the
// execution set for (model, question_id) over the requested regions and
// run the diff engine on it.
//
// Query params: model (required), question_id (required), regions
// (optional comma-separated list; defaults to all configured regions).
func GetCrossRegionDiff(manager *queue.Manager, engine *analysis.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		model := c.Query("model")
		questionID := c.Query("question_id")
		if model == "" || questionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model and question_id are required"})
			return
		}

		regions := manager.Regions()
		if raw := c.Query("regions"); raw != "" {
			regions = regions[:0:0]
			for _, r := range strings.Split(raw, ",") {
				if r = strings.TrimSpace(r); r != "" {
					regions = append(regions, r)
				}
			}
		}

		set := manager.Results().ExecutionSet(model, questionID, regions)
		diff := engine.Analyze(set)
		slog.Info("Cross-region diff computed", "model", model, "question_id", questionID,
			"risk_level", diff.RiskLevel, "missing_regions", diff.MissingRegions)
		c.JSON(http.StatusOK, diff)
	}
}

// CompareTexts handles POST /v1/diffs/compare: ad-hoc pairwise diff of two
// regional texts.
func CompareTexts(comparer *analysis.Comparer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CompareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, comparer.Compare(&req))
	}
}

// GetRecentDiffs handles GET /v1/diffs/recent: the bounded ring of recent
// pairwise comparisons, newest first.
func GetRecentDiffs(comparer *analysis.Comparer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"diffs": comparer.Recent()})
	}
}
