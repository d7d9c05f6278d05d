package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pulso-health/backend/internal/audit"
	"github.com/pulso-health/backend/internal/gemini"
	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

const maxChatMessageLength = 2000

// Fixed replies for the degraded chat paths. The upstream model sometimes
// answers conversational prompts with a JSON blob meant for the analysis
// pipeline; those replies are replaced rather than shown to the user.
const (
	clarifyingReply = "I'm here to help! Could you please rephrase your question?"
	retryReply      = "I'm having trouble connecting right now. Please try again in a moment! 🔄"
)

// ErrInvalidMessage is returned when a chat message fails validation
var ErrInvalidMessage = errors.New("message must be between 1 and 2000 characters")

// ChatStore persists chat exchanges
type ChatStore interface {
	SaveExchange(ctx context.Context, exchange *model.ChatExchange) error
	ListHistory(ctx context.Context, userID string, limit int) ([]model.ChatExchange, error)
}

// ChatService orchestrates the health assistant conversation flow
type ChatService struct {
	classifier *IntentClassifier
	profiles   ProfileReader
	store      ChatStore
	ai         gemini.Generator
	auditLog   *audit.Logger
	logger     *zap.Logger
}

// NewChatService creates a new ChatService
func NewChatService(
	classifier *IntentClassifier,
	profiles ProfileReader,
	store ChatStore,
	ai gemini.Generator,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		classifier: classifier,
		profiles:   profiles,
		store:      store,
		ai:         ai,
		auditLog:   auditLog,
		logger:     logger,
	}
}

// SendMessage handles one user message: classify its intent, gather session
// context, ask the model, and persist the exchange. Upstream AI failures
// degrade to a fixed retry reply instead of an error.
func (s *ChatService) SendMessage(ctx context.Context, userID, message string, sessionID *string, ipAddress, userAgent string) (*model.ChatExchange, error) {
	if utf8.RuneCountInString(message) == 0 || utf8.RuneCountInString(message) > maxChatMessageLength {
		return nil, ErrInvalidMessage
	}

	s.logger.Info("processing chat message",
		zap.String("user_id", userID),
		zap.Int("message_length", utf8.RuneCountInString(message)),
	)

	intent, sessionIDs, err := s.classifier.Classify(ctx, userID, message, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to classify message: %w", err)
	}

	sessionContext := s.classifier.BuildContext(ctx, userID, sessionIDs)

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		// The assistant still answers without a profile
		s.logger.Warn("failed to load profile for chat",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		profile = nil
	}

	prompt := BuildChatPrompt(profile, sessionContext, message)

	reply := s.generateReply(ctx, prompt, userID)

	exchange := &model.ChatExchange{
		UserID:      userID,
		UserMessage: message,
		AIResponse:  reply,
		Intent:      intent,
		SessionIDs:  sessionIDs,
	}

	if err := s.store.SaveExchange(ctx, exchange); err != nil {
		return nil, fmt.Errorf("failed to persist chat exchange: %w", err)
	}

	if s.auditLog != nil {
		if err := s.auditLog.LogCreate(ctx, userID, audit.ResourceChatMessage, exchange.ID, ipAddress, userAgent); err != nil {
			s.logger.Warn("failed to audit chat message", zap.Error(err))
		}
	}

	s.logger.Info("chat message processed",
		zap.String("user_id", userID),
		zap.String("intent", string(intent)),
		zap.Int("context_sessions", len(sessionIDs)),
	)

	return exchange, nil
}

// History returns a user's recent exchanges, newest first
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]model.ChatExchange, error) {
	return s.store.ListHistory(ctx, userID, limit)
}

// generateReply calls the model and applies the degraded-reply rules
func (s *ChatService) generateReply(ctx context.Context, prompt, userID string) string {
	raw, err := s.ai.Generate(ctx, prompt, nil)
	if err != nil {
		s.logger.Error("chat AI call failed, returning retry reply",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return retryReply
	}

	reply := strings.TrimSpace(raw)
	if reply == "" || strings.HasPrefix(reply, "{") {
		s.logger.Warn("model returned unusable chat reply, returning clarifying reply",
			zap.String("user_id", userID),
		)
		return clarifyingReply
	}

	return reply
}
