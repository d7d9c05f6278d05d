package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// SessionRepository reads ECG monitoring sessions recorded by the mobile app
type SessionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// GetSession retrieves a session with its questionnaire and ordered R-peaks
func (r *SessionRepository) GetSession(ctx context.Context, userID, sessionID string) (*model.ECGSession, error) {
	query := `
		SELECT id, user_id, created_at, duration_seconds,
		       average_heart_rate, max_heart_rate, min_heart_rate,
		       r_peak_count, ecg_image_url,
		       q_time_of_day, q_caffeine_consumed, q_nicotine_consumed,
		       q_activity_level, q_stress_score, q_additional_symptoms
		FROM ecg_sessions
		WHERE id = $1 AND user_id = $2
	`

	var session model.ECGSession
	var questionnaire model.Questionnaire
	err := r.db.QueryRow(ctx, query, sessionID, userID).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.DurationSeconds,
		&session.AverageHeartRate,
		&session.MaxHeartRate,
		&session.MinHeartRate,
		&session.RPeakCount,
		&session.ECGImageURL,
		&questionnaire.TimeOfDay,
		&questionnaire.CaffeineConsumed,
		&questionnaire.NicotineConsumed,
		&questionnaire.ActivityLevel,
		&questionnaire.StressScore,
		&questionnaire.AdditionalSymptoms,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		r.logger.Error("failed to get session", zap.Error(err), zap.String("session_id", sessionID))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if questionnaire != (model.Questionnaire{}) {
		session.Questionnaire = &questionnaire
	}

	rpeaks, err := r.getRPeaks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.RPeaks = rpeaks

	return &session, nil
}

// getRPeaks loads the R-peak sequence for a session in detection order
func (r *SessionRepository) getRPeaks(ctx context.Context, sessionID string) ([]model.RPeak, error) {
	query := `
		SELECT peak_index, timestamp_ms, rr_interval_ms
		FROM ecg_r_peaks
		WHERE session_id = $1
		ORDER BY peak_index ASC
	`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		r.logger.Error("failed to get r-peaks", zap.Error(err), zap.String("session_id", sessionID))
		return nil, fmt.Errorf("failed to get r-peaks: %w", err)
	}
	defer rows.Close()

	var peaks []model.RPeak
	for rows.Next() {
		var peak model.RPeak
		if err := rows.Scan(&peak.Index, &peak.TimestampMS, &peak.RRIntervalMS); err != nil {
			return nil, fmt.Errorf("failed to scan r-peak: %w", err)
		}
		peaks = append(peaks, peak)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read r-peaks: %w", err)
	}

	return peaks, nil
}

// ListRecentSessionIDs returns the ids of the user's most recent sessions,
// newest first
func (r *SessionRepository) ListRecentSessionIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM ecg_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("failed to list recent sessions", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list recent sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session ids: %w", err)
	}

	return ids, nil
}
