package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/agent"
	"github.com/mindline/mindline-backend/internal/pipeline"
)

type agentChatRequest struct {
	Query       string                 `json:"query" binding:"required"`
	ChatHistory []pipeline.HistoryPair `json:"chat_history"`
	UserID      string                 `json:"user_id" binding:"required"`
}

// AgentChat streams one turn as newline-delimited JSON: typed event lines
// while the run progresses, then a trailing usage line. An error mid-run
// terminates the stream early; there is no trailing line in that case.
func (h *Handler) AgentChat(c *gin.Context) {
	var req agentChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)

	writeLine := func(v any) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		_, _ = c.Writer.Write(append(b, '\n'))
		if canFlush {
			flusher.Flush()
		}
	}

	usage, err := h.Pipeline.RunStreamed(c.Request.Context(), req.UserID, req.Query, req.ChatHistory, func(ev agent.Event) {
		writeLine(ev)
	})
	if err != nil {
		h.Log.Error("agent chat turn failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return
	}

	writeLine(usage)
}
