package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/assistant"
	"github.com/automatter/rfptrack/pkg/middleware"
)

// AssistantHandler is the chat entry point. It shares the auth gate with
// the resource routes but is otherwise an independent path.
type AssistantHandler struct {
	svc *assistant.Service
}

func NewAssistantHandler(svc *assistant.Service) *AssistantHandler {
	return &AssistantHandler{svc: svc}
}

func (h *AssistantHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/ai/chat", h.chat)
}

type chatRequest struct {
	ChatKey string `json:"chatKey" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (h *AssistantHandler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "chatKey and message are required"})
		return
	}

	reply := h.svc.Chat(c.Request.Context(), req.ChatKey, req.Message, middleware.Identity(c))

	body := gin.H{"response": reply.Response, "intent": reply.Intent}
	if reply.Err != nil {
		body["error"] = reply.Err.Error()
	}
	c.JSON(http.StatusOK, body)
}
