package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ChatRequest is the chat endpoint payload
type ChatRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
}

// ChatResponse is the chat endpoint reply
type ChatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and prompt are required"})
		return
	}

	reply, err := s.orch.HandleTurn(c.Request.Context(), req.UserID, req.Prompt)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Turn failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "response generation failed, please try again"})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: reply})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	redisStatus := "ok"
	if err := s.store.Health(c.Request.Context()); err != nil {
		// Degraded, not down: turns still work without the memory store.
		status = "degraded"
		redisStatus = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": s.appName,
		"version": s.appVersion,
		"redis":   redisStatus,
	})
}
