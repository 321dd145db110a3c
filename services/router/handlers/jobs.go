// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the router service API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/queue"
	"github.com/gin-gonic/gin"
)

// SubmitJob handles POST /v1/jobs: validate, enqueue, return the queue
// position and estimated wait.
func SubmitJob(manager *queue.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SubmitJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := manager.Submit(&req)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrUnknownRegion):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, queue.ErrLaneFull):
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Region queue at capacity, retry later"})
			default:
				slog.Error("Job submit failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue job"})
			}
			return
		}

		slog.Info("Job submitted", "job_id", resp.JobID, "region", resp.Region,
			"model", req.Model, "queue_position", resp.QueuePosition)
		c.JSON(http.StatusAccepted, resp)
	}
}

// GetJob handles GET /v1/jobs/:jobId: poll one job's result.
func GetJob(manager *queue.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")
		result, ok := manager.Results().Get(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown job ID"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
