package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pulso-health/backend/internal/service"
	"go.uber.org/zap"
)

// ReportHandler implements the analysis report export endpoint. The service
// is nil when blob storage is not configured; the endpoint then returns 503.
type ReportHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// ExportReportRequest is the body of POST /api/v1/sessions/:id/report
type ExportReportRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// PostSessionReport renders the latest analysis of a session to PDF and
// uploads it to blob storage
func (h *ReportHandler) PostSessionReport(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    codeServiceUnavailable,
			Message: "Report storage is not configured",
		})
		return
	}

	sessionID := c.Param("id")

	var req ExportReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    codeValidationError,
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	report, err := h.service.ExportReport(
		c.Request.Context(),
		req.UserID,
		sessionID,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no analysis found") {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    codeNotFound,
				Message: "Session or analysis not found",
				Details: stringPtr(err.Error()),
			})
			return
		}
		h.logger.Error("failed to export report",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    codeInternalError,
			Message: "Failed to export report",
			Details: stringPtr(err.Error()),
		})
		return
	}

	h.logger.Info("report exported",
		zap.String("session_id", sessionID),
		zap.String("report_id", report.ID),
	)

	c.JSON(http.StatusOK, report)
}
