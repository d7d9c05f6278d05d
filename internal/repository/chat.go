package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulso-health/backend/internal/security"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// defaultHistoryLimit caps history reads when the caller passes no limit
const defaultHistoryLimit = 20

// ChatRepository persists chat exchanges. Message bodies are encrypted at
// rest when an Encryptor is configured; a nil encryptor stores plaintext.
type ChatRepository struct {
	db        *pgxpool.Pool
	encryptor *security.Encryptor
	logger    *zap.Logger
}

// NewChatRepository creates a new ChatRepository
func NewChatRepository(db *pgxpool.Pool, encryptor *security.Encryptor, logger *zap.Logger) *ChatRepository {
	return &ChatRepository{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
	}
}

// SaveExchange stores a user message and the assistant's reply as one row
func (r *ChatRepository) SaveExchange(ctx context.Context, exchange *model.ChatExchange) error {
	if exchange.ID == "" {
		exchange.ID = uuid.New().String()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}

	userMessage, err := r.seal(exchange.UserMessage)
	if err != nil {
		return fmt.Errorf("failed to encrypt user message: %w", err)
	}
	aiResponse, err := r.seal(exchange.AIResponse)
	if err != nil {
		return fmt.Errorf("failed to encrypt ai response: %w", err)
	}

	query := `
		INSERT INTO chat_messages (id, user_id, user_message, ai_response, intent, session_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Exec(ctx, query,
		exchange.ID,
		exchange.UserID,
		userMessage,
		aiResponse,
		string(exchange.Intent),
		exchange.SessionIDs,
		exchange.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to save chat exchange", zap.Error(err), zap.String("user_id", exchange.UserID))
		return fmt.Errorf("failed to save chat exchange: %w", err)
	}

	return nil
}

// ListHistory returns a user's most recent exchanges, newest first. A limit
// of zero or less falls back to the default of 20.
func (r *ChatRepository) ListHistory(ctx context.Context, userID string, limit int) ([]model.ChatExchange, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `
		SELECT id, user_id, user_message, ai_response, intent, session_ids, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("failed to list chat history", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	defer rows.Close()

	var history []model.ChatExchange
	for rows.Next() {
		var exchange model.ChatExchange
		var intent string
		if err := rows.Scan(
			&exchange.ID,
			&exchange.UserID,
			&exchange.UserMessage,
			&exchange.AIResponse,
			&intent,
			&exchange.SessionIDs,
			&exchange.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat exchange: %w", err)
		}
		exchange.Intent = model.Intent(intent)

		if exchange.UserMessage, err = r.open(exchange.UserMessage); err != nil {
			return nil, fmt.Errorf("failed to decrypt user message: %w", err)
		}
		if exchange.AIResponse, err = r.open(exchange.AIResponse); err != nil {
			return nil, fmt.Errorf("failed to decrypt ai response: %w", err)
		}

		history = append(history, exchange)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	return history, nil
}

func (r *ChatRepository) seal(plaintext string) (string, error) {
	if r.encryptor == nil {
		return plaintext, nil
	}
	return r.encryptor.Encrypt(plaintext)
}

func (r *ChatRepository) open(ciphertext string) (string, error) {
	if r.encryptor == nil {
		return ciphertext, nil
	}
	return r.encryptor.Decrypt(ciphertext)
}
