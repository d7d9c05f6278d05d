package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pulso-health/backend/internal/service"
	"go.uber.org/zap"
)

// AnalysisHandler implements the ECG analysis endpoint
type AnalysisHandler struct {
	service *service.AnalysisService
	logger  *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(service *service.AnalysisService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger,
	}
}

// AnalyzeSessionRequest is the body of POST /api/v1/sessions/:id/analysis
type AnalyzeSessionRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// PostSessionAnalysis runs the AI analysis for a recorded session
func (h *AnalysisHandler) PostSessionAnalysis(c *gin.Context) {
	sessionID := c.Param("id")

	var req AnalyzeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    codeValidationError,
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	result, err := h.service.AnalyzeSession(
		c.Request.Context(),
		req.UserID,
		sessionID,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    codeNotFound,
				Message: "Session not found",
				Details: stringPtr(err.Error()),
			})
			return
		}
		h.logger.Error("failed to analyze session",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    codeInternalError,
			Message: "Failed to analyze session",
			Details: stringPtr(err.Error()),
		})
		return
	}

	h.logger.Info("session analyzed",
		zap.String("session_id", sessionID),
		zap.String("risk_level", string(result.RiskLevel)),
	)

	c.JSON(http.StatusOK, result)
}
