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
	"net/http"

	"github.com/AleutianAI/vantage/services/router/queue"
	"github.com/AleutianAI/vantage/services/router/registry"
	"github.com/gin-gonic/gin"
)

// GetQueues handles GET /v1/queues: lane depths and throughput counters
// for every region.
func GetQueues(manager *queue.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"queues": manager.Statuses()})
	}
}

// GetProviders handles GET /v1/providers: health, load and latency
// snapshots, optionally filtered by ?region=.
func GetProviders(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		region := c.Query("region")
		c.JSON(http.StatusOK, gin.H{"providers": reg.Statuses(region)})
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
