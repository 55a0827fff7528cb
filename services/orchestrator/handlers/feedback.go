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
	"go.opentelemetry.io/otel/codes"

	"github.com/htwebz/assistant/services/knowledge"
	"github.com/htwebz/assistant/services/orchestrator/corpus"
	"github.com/htwebz/assistant/services/orchestrator/datatypes"
	"github.com/htwebz/assistant/services/orchestrator/observability"
)

// FeedbackDeps are the collaborators of the feedback endpoint.
type FeedbackDeps struct {
	Corpus    *corpus.ConversationStore
	Knowledge *corpus.KnowledgeMap
	Metrics   *observability.ChatMetrics
}

// HandleFeedback answers POST /v1/feedback.
//
// # Description
//
// Feedback is an explicit correction: the corrected pair refines the
// conversation corpus in place (near-duplicate inputs update rather than
// grow the corpus), and question-shaped messages additionally override the
// knowledge mapping so template placeholders and exact lookups pick up the
// correction.
func HandleFeedback(deps FeedbackDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleFeedback")
		defer span.End()

		var req datatypes.FeedbackRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			deps.Metrics.ObserveRequest("feedback", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			deps.Metrics.ObserveRequest("feedback", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rec := deps.Corpus.Append(ctx, req.Message, req.CorrectResponse, "user", true)

		if topic := knowledge.TopicFromQuestion(req.Message); topic != "" && topic != rec.Input {
			deps.Knowledge.Set(topic, req.CorrectResponse)
		}

		slog.Info("Stored feedback correction", "record_id", rec.ID)
		deps.Metrics.ObserveRequest("feedback", nil)
		c.JSON(http.StatusOK, gin.H{"status": "stored", "record_id": rec.ID})
	}
}
