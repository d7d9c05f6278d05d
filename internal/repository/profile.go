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

// ProfileRepository reads user medical profiles
type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetProfile retrieves a user's medical history and medications. A user with
// no recorded history and no medications yields nil, not an error; prompts
// then fall back to their placeholder wording.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile := &model.UserProfile{UserID: userID}

	historyQuery := `
		SELECT age_at_record, gender, existing_conditions
		FROM medical_histories
		WHERE user_id = $1
	`

	var history model.MedicalHistory
	err := r.db.QueryRow(ctx, historyQuery, userID).Scan(
		&history.AgeAtRecord,
		&history.Gender,
		&history.ExistingConditions,
	)
	switch {
	case err == nil:
		profile.MedicalHistory = &history
	case errors.Is(err, pgx.ErrNoRows):
		// No recorded history is a normal state
	default:
		r.logger.Error("failed to get medical history", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get medical history: %w", err)
	}

	medicationsQuery := `
		SELECT id, medication_name, dosage, started_at
		FROM user_medications
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, medicationsQuery, userID)
	if err != nil {
		r.logger.Error("failed to get medications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get medications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry model.MedicationEntry
		if err := rows.Scan(&entry.ID, &entry.MedicationName, &entry.Dosage, &entry.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		profile.Medications = append(profile.Medications, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read medications: %w", err)
	}

	if profile.MedicalHistory == nil && len(profile.Medications) == 0 {
		return nil, nil
	}

	return profile, nil
}
