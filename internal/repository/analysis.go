package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// AnalysisRepository persists AI analysis results for ECG sessions
type AnalysisRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAnalysisRepository creates a new AnalysisRepository
func NewAnalysisRepository(db *pgxpool.Pool, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: logger,
	}
}

// SaveResult stores an analysis result for a session
func (r *AnalysisRepository) SaveResult(ctx context.Context, result *model.AnalysisResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO analysis_results (
			id, session_id, prediction, confidence_score, risk_level,
			recommendations, clinical_analysis, diagnosis_summary,
			detailed_analysis, summary, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		result.ID,
		result.SessionID,
		result.Prediction,
		result.ConfidenceScore,
		string(result.RiskLevel),
		result.Recommendations,
		result.ClinicalAnalysis,
		result.DiagnosisSummary,
		result.DetailedAnalysis,
		result.Summary,
		result.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to save analysis result", zap.Error(err), zap.String("session_id", result.SessionID))
		return fmt.Errorf("failed to save analysis result: %w", err)
	}

	return nil
}

// GetLatestForSession returns the most recent analysis stored for a session,
// or nil when the session has never been analyzed
func (r *AnalysisRepository) GetLatestForSession(ctx context.Context, sessionID string) (*model.AnalysisResult, error) {
	query := `
		SELECT id, session_id, prediction, confidence_score, risk_level,
		       recommendations, clinical_analysis, diagnosis_summary,
		       detailed_analysis, summary, created_at
		FROM analysis_results
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var result model.AnalysisResult
	var riskLevel string
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&result.ID,
		&result.SessionID,
		&result.Prediction,
		&result.ConfidenceScore,
		&riskLevel,
		&result.Recommendations,
		&result.ClinicalAnalysis,
		&result.DiagnosisSummary,
		&result.DetailedAnalysis,
		&result.Summary,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get analysis result", zap.Error(err), zap.String("session_id", sessionID))
		return nil, fmt.Errorf("failed to get analysis result: %w", err)
	}
	result.RiskLevel = model.RiskLevel(riskLevel)

	return &result, nil
}
