package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulso-health/backend/internal/service"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// ChatHandler implements the health assistant chat endpoints
type ChatHandler struct {
	service *service.ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// ChatMessageRequest is the body of POST /api/v1/chat/message
type ChatMessageRequest struct {
	UserID    string  `json:"user_id" binding:"required,uuid"`
	Message   string  `json:"message" binding:"required"`
	SessionID *string `json:"session_id,omitempty"`
}

// ChatMessageResponse is the reply payload for a processed chat message
type ChatMessageResponse struct {
	Response   string       `json:"response"`
	Intent     model.Intent `json:"intent"`
	SessionIDs []string     `json:"session_ids"`
	Timestamp  time.Time    `json:"timestamp"`
}

// PostChatMessage handles a user chat message
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    codeValidationError,
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	exchange, err := h.service.SendMessage(
		c.Request.Context(),
		req.UserID,
		req.Message,
		req.SessionID,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMessage) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    codeValidationError,
				Message: err.Error(),
			})
			return
		}
		h.logger.Error("failed to process chat message",
			zap.Error(err),
			zap.String("user_id", req.UserID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    codeInternalError,
			Message: "Failed to process chat message",
			Details: stringPtr(err.Error()),
		})
		return
	}

	sessionIDs := exchange.SessionIDs
	if sessionIDs == nil {
		sessionIDs = []string{}
	}

	h.logger.Info("chat message handled",
		zap.String("user_id", req.UserID),
		zap.String("intent", string(exchange.Intent)),
	)

	c.JSON(http.StatusOK, ChatMessageResponse{
		Response:   exchange.AIResponse,
		Intent:     exchange.Intent,
		SessionIDs: sessionIDs,
		Timestamp:  exchange.CreatedAt,
	})
}

// GetChatHistory returns a user's recent exchanges, newest first
func (h *ChatHandler) GetChatHistory(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    codeValidationError,
			Message: "user_id query parameter is required",
		})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    codeValidationError,
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	history, err := h.service.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to get chat history",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    codeInternalError,
			Message: "Failed to get chat history",
			Details: stringPtr(err.Error()),
		})
		return
	}

	if history == nil {
		history = []model.ChatExchange{}
	}

	h.logger.Info("chat history retrieved",
		zap.String("user_id", userID),
		zap.Int("count", len(history)),
	)

	c.JSON(http.StatusOK, gin.H{
		"messages": history,
		"count":    len(history),
	})
}
