package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulso-health/backend/internal/audit"
	"github.com/pulso-health/backend/internal/pdf"
	"github.com/pulso-health/backend/internal/storage"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// ReportService renders analysis reports to PDF and stores them
type ReportService struct {
	sessions SessionDirectory
	profiles ProfileReader
	results  AnalysisStore
	blobs    storage.BlobStorage
	pdfGen   *pdf.PDFGenerator
	auditLog *audit.Logger
	logger   *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	sessions SessionDirectory,
	profiles ProfileReader,
	results AnalysisStore,
	blobs storage.BlobStorage,
	pdfGen *pdf.PDFGenerator,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		sessions: sessions,
		profiles: profiles,
		results:  results,
		blobs:    blobs,
		pdfGen:   pdfGen,
		auditLog: auditLog,
		logger:   logger,
	}
}

// ExportReport renders the latest stored analysis of a session into a PDF and
// uploads it to blob storage. The session must have been analyzed first.
func (s *ReportService) ExportReport(ctx context.Context, userID, sessionID, ipAddress, userAgent string) (*model.AnalysisReport, error) {
	s.logger.Info("exporting analysis report",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
	)

	session, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.results.GetLatestForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, fmt.Errorf("no analysis found for session: %s", sessionID)
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		// The report renders without patient info
		s.logger.Warn("failed to load profile for report",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		profile = nil
	}

	reportData := &pdf.ReportData{
		Profile:  profile,
		Session:  session,
		HRV:      ComputeHRV(session.RPeaks),
		Analysis: analysis,
	}

	pdfBytes, err := s.pdfGen.Generate(reportData)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	reportID := uuid.New().String()
	filename := fmt.Sprintf("%s_%s.pdf", reportID, time.Now().Format("20060102"))
	blobName, err := s.blobs.UploadReport(ctx, filename, pdfBytes)
	if err != nil {
		s.logger.Error("failed to upload report to blob storage",
			zap.Error(err),
			zap.String("report_id", reportID),
		)
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	if s.auditLog != nil {
		if err := s.auditLog.LogCreate(ctx, userID, audit.ResourceReport, reportID, ipAddress, userAgent); err != nil {
			s.logger.Warn("failed to audit report export", zap.Error(err))
		}
	}

	report := &model.AnalysisReport{
		ID:        reportID,
		SessionID: sessionID,
		BlobName:  blobName,
		SizeBytes: len(pdfBytes),
		CreatedAt: time.Now().UTC(),
	}

	s.logger.Info("analysis report exported",
		zap.String("report_id", reportID),
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", report.SizeBytes),
	)

	return report, nil
}

// DownloadReport fetches a previously exported report PDF
func (s *ReportService) DownloadReport(ctx context.Context, blobName string) ([]byte, error) {
	return s.blobs.DownloadReport(ctx, blobName)
}
