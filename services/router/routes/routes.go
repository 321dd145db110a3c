// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/vantage/services/router/analysis"
	"github.com/AleutianAI/vantage/services/router/handlers"
	"github.com/AleutianAI/vantage/services/router/queue"
	"github.com/AleutianAI/vantage/services/router/registry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *gin.Engine, manager *queue.Manager, reg *registry.Registry,
	engine *analysis.Engine, comparer *analysis.Comparer, hub *handlers.EventHub) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", handlers.SubmitJob(manager))
			jobs.GET("/ws", handlers.JobEventsWebSocket(hub))
			jobs.GET("/:jobId", handlers.GetJob(manager))
		}
		v1.GET("/queues", handlers.GetQueues(manager))
		v1.GET("/providers", handlers.GetProviders(reg))

		diffs := v1.Group("/diffs")
		{
			diffs.GET("/cross-region", handlers.GetCrossRegionDiff(manager, engine))
			diffs.POST("/compare", handlers.CompareTexts(comparer))
			diffs.GET("/recent", handlers.GetRecentDiffs(comparer))
		}
	}
}
