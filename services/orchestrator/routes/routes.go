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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/htwebz/assistant/services/orchestrator/handlers"
)

// SetupRoutes mounts the assistant's HTTP surface on router.
func SetupRoutes(router *gin.Engine, chat handlers.ChatDeps, feedback handlers.FeedbackDeps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/chat", handlers.HandleChat(chat))
		v1.POST("/feedback", handlers.HandleFeedback(feedback))

		conversations := v1.Group("/conversations")
		{
			conversations.GET("", handlers.ListConversations(chat.Corpus))
			conversations.DELETE("/:id", handlers.DeleteConversation(chat.Corpus))
		}
	}
}
