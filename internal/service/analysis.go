package service

import (
	"context"
	"fmt"

	"github.com/pulso-health/backend/internal/audit"
	"github.com/pulso-health/backend/internal/gemini"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// ProfileReader loads a user's medical profile
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
}

// AnalysisStore persists and retrieves analysis results
type AnalysisStore interface {
	SaveResult(ctx context.Context, result *model.AnalysisResult) error
	GetLatestForSession(ctx context.Context, sessionID string) (*model.AnalysisResult, error)
}

// AnalysisService orchestrates AI analysis of ECG sessions
type AnalysisService struct {
	sessions SessionDirectory
	profiles ProfileReader
	results  AnalysisStore
	ai       gemini.Generator
	auditLog *audit.Logger
	logger   *zap.Logger
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(
	sessions SessionDirectory,
	profiles ProfileReader,
	results AnalysisStore,
	ai gemini.Generator,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		sessions: sessions,
		profiles: profiles,
		results:  results,
		ai:       ai,
		auditLog: auditLog,
		logger:   logger,
	}
}

// AnalyzeSession runs the AI analysis pipeline for a recorded session. Failures
// on the AI path never surface as errors: the caller always receives a result,
// degraded when the upstream call fails.
func (s *AnalysisService) AnalyzeSession(ctx context.Context, userID, sessionID, ipAddress, userAgent string) (*model.AnalysisResult, error) {
	s.logger.Info("analyzing ECG session",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
	)

	session, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		// Analysis still works without a profile, the prompt falls back to
		// its placeholder wording
		s.logger.Warn("failed to load profile for analysis",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		profile = nil
	}

	hrv := ComputeHRV(session.RPeaks)
	prompt := BuildAnalysisPrompt(session, profile, hrv)

	var image []byte
	if session.ECGImageURL != nil && *session.ECGImageURL != "" {
		image, err = s.ai.DownloadImage(ctx, *session.ECGImageURL)
		if err != nil {
			// Text-only analysis is still possible
			s.logger.Warn("failed to download ECG image, continuing without it",
				zap.Error(err),
				zap.String("session_id", sessionID),
			)
			image = nil
		}
	}

	var result model.AnalysisResult
	raw, err := s.ai.Generate(ctx, prompt, image)
	if err != nil {
		s.logger.Error("AI analysis call failed, returning degraded result",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		result = degradedResult(err)
	} else {
		result = ParseAnalysisResponse(raw)
	}
	result.SessionID = sessionID

	if err := s.results.SaveResult(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to persist analysis result: %w", err)
	}

	s.recordAudit(ctx, userID, sessionID, result.ID, ipAddress, userAgent)

	s.logger.Info("ECG session analyzed",
		zap.String("session_id", sessionID),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Float64("confidence", result.ConfidenceScore),
	)

	return &result, nil
}

// LatestResult returns the most recent stored analysis for a session, or nil
func (s *AnalysisService) LatestResult(ctx context.Context, sessionID string) (*model.AnalysisResult, error) {
	return s.results.GetLatestForSession(ctx, sessionID)
}

// degradedResult is returned when the upstream AI call fails entirely
func degradedResult(cause error) model.AnalysisResult {
	return model.AnalysisResult{
		Prediction:      fmt.Sprintf("Analysis unavailable: %v", cause),
		ConfidenceScore: 0.0,
		RiskLevel:       model.RiskLevelLow,
		Recommendations: []string{fallbackGenericRecommendation},
	}
}

// recordAudit writes the audit trail for an analysis run. Audit failures are
// logged, never fatal.
func (s *AnalysisService) recordAudit(ctx context.Context, userID, sessionID, resultID, ipAddress, userAgent string) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.LogRead(ctx, userID, audit.ResourceECGSession, sessionID, ipAddress, userAgent); err != nil {
		s.logger.Warn("failed to audit session read", zap.Error(err))
	}
	if err := s.auditLog.LogCreate(ctx, userID, audit.ResourceAnalysisResult, resultID, ipAddress, userAgent); err != nil {
		s.logger.Warn("failed to audit analysis create", zap.Error(err))
	}
}
