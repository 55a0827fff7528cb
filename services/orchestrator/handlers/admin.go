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

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/htwebz/assistant/services/orchestrator/corpus"
)

// HealthCheck answers GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListConversations answers GET /v1/conversations: the full corpus, for
// administrative inspection.
func ListConversations(store *corpus.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := store.Snapshot()
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	}
}

// DeleteConversation answers DELETE /v1/conversations/:id. Deletion is an
// explicit administrative operation; records never expire on their own.
func DeleteConversation(store *corpus.ConversationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !store.Delete(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no record with that id"})
			return
		}
		slog.Info("Deleted conversation record", "record_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "record_id": id})
	}
}
