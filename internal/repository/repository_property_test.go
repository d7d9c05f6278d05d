package repository

import (
	"context"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pulso-health/backend/internal/security"
	"github.com/pulso-health/backend/pkg/model"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupTestDB creates a PostgreSQL testcontainer and returns the connection pool
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	// Start PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("pulso_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	// Get connection string
	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Create connection pool
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	// Run migrations
	runMigrations(t, pool)

	cleanup := func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return pool, cleanup
}

// runMigrations runs the database migrations
func runMigrations(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	// Create tables
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS medical_histories (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			age_at_record INTEGER,
			gender VARCHAR(50),
			existing_conditions TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS user_medications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			medication_name VARCHAR(255) NOT NULL,
			dosage VARCHAR(255),
			started_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ecg_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			duration_seconds DOUBLE PRECISION NOT NULL,
			average_heart_rate DOUBLE PRECISION,
			max_heart_rate DOUBLE PRECISION,
			min_heart_rate DOUBLE PRECISION,
			r_peak_count INTEGER NOT NULL DEFAULT 0,
			ecg_image_url TEXT,
			q_time_of_day VARCHAR(50),
			q_caffeine_consumed VARCHAR(50),
			q_nicotine_consumed VARCHAR(50),
			q_activity_level VARCHAR(50),
			q_stress_score INTEGER CHECK (q_stress_score >= 1 AND q_stress_score <= 10),
			q_additional_symptoms TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ecg_r_peaks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			session_id UUID NOT NULL REFERENCES ecg_sessions(id) ON DELETE CASCADE,
			peak_index INTEGER NOT NULL,
			timestamp_ms DOUBLE PRECISION NOT NULL,
			rr_interval_ms DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			intent VARCHAR(50) NOT NULL,
			session_ids TEXT[],
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_results (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES ecg_sessions(id) ON DELETE CASCADE,
			prediction TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			risk_level VARCHAR(50) NOT NULL,
			recommendations TEXT[],
			clinical_analysis TEXT NOT NULL DEFAULT '',
			diagnosis_summary TEXT NOT NULL DEFAULT '',
			detailed_analysis TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			operation_type VARCHAR(50) NOT NULL,
			resource_type VARCHAR(50) NOT NULL,
			resource_id VARCHAR(255),
			timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
			ip_address VARCHAR(100),
			user_agent TEXT,
			additional_data JSONB
		)`,
	}

	for _, migration := range migrations {
		_, err := pool.Exec(ctx, migration)
		require.NoError(t, err)
	}
}

// createTestUser creates a test user and returns the user ID
func createTestUser(t *testing.T, pool *pgxpool.Pool) string {
	ctx := context.Background()
	userID := uuid.New().String()

	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`,
		userID, "Test User", fmt.Sprintf("test-%s@example.com", userID))
	require.NoError(t, err)

	return userID
}

// createTestSession inserts an ECG session with one r-peak per interval
func createTestSession(t *testing.T, pool *pgxpool.Pool, userID string, intervals []float64) string {
	ctx := context.Background()
	sessionID := uuid.New().String()

	_, err := pool.Exec(ctx,
		`INSERT INTO ecg_sessions (id, user_id, duration_seconds, r_peak_count)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, userID, 300.0, len(intervals))
	require.NoError(t, err)

	timestamp := 0.0
	for i, interval := range intervals {
		timestamp += interval
		_, err := pool.Exec(ctx,
			`INSERT INTO ecg_r_peaks (session_id, peak_index, timestamp_ms, rr_interval_ms)
			 VALUES ($1, $2, $3, $4)`,
			sessionID, i, timestamp, interval)
		require.NoError(t, err)
	}

	return sessionID
}

func newTestEncryptor(t *testing.T) *security.Encryptor {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	enc, err := security.NewEncryptor(key)
	require.NoError(t, err)
	return enc
}

func TestProperty_ChatExchangeRoundTripPreservesContent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewChatRepository(pool, newTestEncryptor(t), zap.NewNop())

	properties := gopter.NewProperties(nil)

	properties.Property("saved exchanges come back decrypted and intact", prop.ForAll(
		func(userMessage, aiResponse string) bool {
			ctx := context.Background()
			userID := createTestUser(t, pool)

			exchange := &model.ChatExchange{
				UserID:      userID,
				UserMessage: userMessage,
				AIResponse:  aiResponse,
				Intent:      model.IntentGeneralHealth,
				SessionIDs:  []string{"sess-1", "sess-2"},
			}

			if err := repo.SaveExchange(ctx, exchange); err != nil {
				t.Logf("Failed to save exchange: %v", err)
				return false
			}

			// The stored row must hold ciphertext, not the message itself
			if userMessage != "" {
				var stored string
				err := pool.QueryRow(ctx,
					`SELECT user_message FROM chat_messages WHERE id = $1`,
					exchange.ID).Scan(&stored)
				if err != nil {
					t.Logf("Failed to read stored row: %v", err)
					return false
				}
				if stored == userMessage {
					t.Logf("Message stored in plaintext")
					return false
				}
			}

			history, err := repo.ListHistory(ctx, userID, 1)
			if err != nil {
				t.Logf("Failed to list history: %v", err)
				return false
			}
			if len(history) != 1 {
				t.Logf("Expected 1 exchange, got %d", len(history))
				return false
			}

			got := history[0]
			return got.UserMessage == userMessage &&
				got.AIResponse == aiResponse &&
				got.Intent == model.IntentGeneralHealth &&
				len(got.SessionIDs) == 2
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_ChatHistoryRespectsLimitAndOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewChatRepository(pool, nil, zap.NewNop())

	properties := gopter.NewProperties(nil)

	properties.Property("history is newest first and capped at the limit", prop.ForAll(
		func(total int, limit int) bool {
			ctx := context.Background()
			userID := createTestUser(t, pool)

			base := time.Now().UTC().Add(-time.Hour)
			for i := 0; i < total; i++ {
				exchange := &model.ChatExchange{
					UserID:      userID,
					UserMessage: fmt.Sprintf("message %d", i),
					AIResponse:  fmt.Sprintf("reply %d", i),
					Intent:      model.IntentGeneralHealth,
					CreatedAt:   base.Add(time.Duration(i) * time.Minute),
				}
				if err := repo.SaveExchange(ctx, exchange); err != nil {
					t.Logf("Failed to save exchange: %v", err)
					return false
				}
			}

			history, err := repo.ListHistory(ctx, userID, limit)
			if err != nil {
				t.Logf("Failed to list history: %v", err)
				return false
			}

			expected := total
			if limit < total {
				expected = limit
			}
			if len(history) != expected {
				t.Logf("Expected %d exchanges, got %d", expected, len(history))
				return false
			}

			for i := 1; i < len(history); i++ {
				if history[i].CreatedAt.After(history[i-1].CreatedAt) {
					t.Logf("History out of order at index %d", i)
					return false
				}
			}

			return true
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

func TestChatHistory_DefaultLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewChatRepository(pool, nil, zap.NewNop())
	userID := createTestUser(t, pool)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		exchange := &model.ChatExchange{
			UserID:      userID,
			UserMessage: fmt.Sprintf("message %d", i),
			AIResponse:  "ok",
			Intent:      model.IntentGeneralHealth,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.SaveExchange(ctx, exchange))
	}

	history, err := repo.ListHistory(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, history, 20, "zero limit falls back to the default of 20")
}

func TestProperty_AnalysisResultRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAnalysisRepository(pool, zap.NewNop())

	properties := gopter.NewProperties(nil)

	properties.Property("stored analysis results come back intact", prop.ForAll(
		func(prediction string, confidence float64, recommendations []string) bool {
			ctx := context.Background()
			userID := createTestUser(t, pool)
			sessionID := createTestSession(t, pool, userID, []float64{800, 810, 790})

			result := &model.AnalysisResult{
				SessionID:       sessionID,
				Prediction:      prediction,
				ConfidenceScore: confidence,
				RiskLevel:       model.RiskLevelModerate,
				Recommendations: recommendations,
			}

			if err := repo.SaveResult(ctx, result); err != nil {
				t.Logf("Failed to save result: %v", err)
				return false
			}

			got, err := repo.GetLatestForSession(ctx, sessionID)
			if err != nil {
				t.Logf("Failed to get result: %v", err)
				return false
			}
			if got == nil {
				t.Logf("Expected a result, got nil")
				return false
			}

			if got.Prediction != prediction || got.ConfidenceScore != confidence ||
				got.RiskLevel != model.RiskLevelModerate {
				return false
			}
			if len(got.Recommendations) != len(recommendations) {
				return false
			}
			for i := range recommendations {
				if got.Recommendations[i] != recommendations[i] {
					return false
				}
			}

			return true
		},
		gen.AlphaString(),
		gen.Float64Range(0, 1),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestGetLatestForSession_ReturnsNilWhenNeverAnalyzed(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewAnalysisRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)
	sessionID := createTestSession(t, pool, userID, nil)

	got, err := repo.GetLatestForSession(ctx, sessionID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetSession_RPeaksOrderedByIndex(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewSessionRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)
	intervals := []float64{0, 800, 810, 790, 805}
	sessionID := createTestSession(t, pool, userID, intervals)

	session, err := repo.GetSession(ctx, userID, sessionID)
	require.NoError(t, err)
	require.Len(t, session.RPeaks, len(intervals))

	for i, peak := range session.RPeaks {
		require.Equal(t, i, peak.Index)
		require.Equal(t, intervals[i], peak.RRIntervalMS)
	}
	require.Nil(t, session.Questionnaire, "empty questionnaire columns collapse to nil")
}

func TestGetProfile_AbsentDataReturnsNil(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewProfileRepository(pool, zap.NewNop())
	userID := createTestUser(t, pool)

	profile, err := repo.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, profile, "no history and no medications yields nil profile")
}
