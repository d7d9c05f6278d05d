package integration_tests

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulso-health/backend/internal/audit"
	"github.com/pulso-health/backend/internal/gemini"
	"github.com/pulso-health/backend/internal/handler"
	"github.com/pulso-health/backend/internal/repository"
	"github.com/pulso-health/backend/internal/security"
	"github.com/pulso-health/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestChatFlowIntegration exercises the assistant chat flow end to end:
// intent classification, context assembly, the model call, encrypted
// persistence, and history retrieval.
func TestChatFlowIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	userID := seedUser(t, ctx, db)
	seedProfile(t, ctx, db, userID)
	sessionID := seedSession(t, ctx, db, userID)

	gin.SetMode(gin.TestMode)

	// One encryption key for the whole flow so every subtest can read rows
	// the earlier ones wrote
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	encryptor, err := security.NewEncryptor(key)
	require.NoError(t, err)
	chatRepo := repository.NewChatRepository(db, encryptor, logger)

	t.Run("General health question round trip", func(t *testing.T) {
		aiClient := newStubGeminiClient(t, logger,
			"Staying hydrated supports healthy circulation. Aim for about two liters a day.")
		router := newChatRouter(db, chatRepo, aiClient, logger)

		status, body := postChatMessage(t, router, userID,
			"How much water should I drink per day?", nil)
		require.Equal(t, http.StatusOK, status, "Chat message should return 200 OK")

		var response handler.ChatMessageResponse
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "general_health", string(response.Intent))
		assert.Contains(t, response.Response, "hydrated")
		assert.Empty(t, response.SessionIDs, "General questions should not pull session context")
		assert.False(t, response.Timestamp.IsZero())
	})

	t.Run("Session query pulls recent session context", func(t *testing.T) {
		aiClient := newStubGeminiClient(t, logger,
			"Your latest recording shows a steady rhythm with an average of about 75 bpm.")
		router := newChatRouter(db, chatRepo, aiClient, logger)

		status, body := postChatMessage(t, router, userID,
			"Tell me about my last session", nil)
		require.Equal(t, http.StatusOK, status)

		var response handler.ChatMessageResponse
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "session_query", string(response.Intent))
		assert.Contains(t, response.SessionIDs, sessionID,
			"The exchange should record which session fed the context")
	})

	t.Run("Upstream failure degrades to retry reply", func(t *testing.T) {
		aiClient := newFailingGeminiClient(t, logger)
		router := newChatRouter(db, chatRepo, aiClient, logger)

		status, body := postChatMessage(t, router, userID, "Is coffee bad for my heart?", nil)
		require.Equal(t, http.StatusOK, status, "AI failures should not surface as HTTP errors")

		var response handler.ChatMessageResponse
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t,
			"I'm having trouble connecting right now. Please try again in a moment! 🔄",
			response.Response)
	})

	t.Run("History returns decrypted exchanges newest first", func(t *testing.T) {
		aiClient := newStubGeminiClient(t, logger, "Noted!")
		router := newChatRouter(db, chatRepo, aiClient, logger)

		req := httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/api/v1/chat/history?user_id=%s&limit=10", userID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Messages []struct {
				UserMessage string `json:"user_message"`
				AIResponse  string `json:"ai_response"`
			} `json:"messages"`
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Greater(t, response.Count, 0, "Earlier subtests should have stored exchanges")
		require.Len(t, response.Messages, response.Count)

		// The failure-path exchange is the most recent one and must come
		// back as readable text despite at-rest encryption
		assert.Equal(t, "Is coffee bad for my heart?", response.Messages[0].UserMessage)

		var rawStored string
		err := db.QueryRow(ctx,
			`SELECT user_message FROM chat_messages
			 WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
			userID).Scan(&rawStored)
		require.NoError(t, err)
		assert.NotEqual(t, "Is coffee bad for my heart?", rawStored,
			"Messages should be encrypted at rest")
	})

	t.Run("Audit trail records chat activity", func(t *testing.T) {
		var count int
		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM audit_logs
			 WHERE user_id = $1 AND resource_type = 'chat_message'`,
			userID).Scan(&count)
		require.NoError(t, err)
		assert.Greater(t, count, 0, "Chat exchanges should leave audit entries")
	})
}

// newChatRouter wires the chat stack the way main does, against the given
// model client
func newChatRouter(db *pgxpool.Pool, chatRepo *repository.ChatRepository, aiClient *gemini.Client, logger *zap.Logger) *gin.Engine {
	profileRepo := repository.NewProfileRepository(db, logger)
	sessionRepo := repository.NewSessionRepository(db, logger)
	auditLogger := audit.NewLogger(db, logger)

	classifier := service.NewIntentClassifier(sessionRepo, logger)
	chatService := service.NewChatService(classifier, profileRepo, chatRepo, aiClient, auditLogger, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/chat/message", chatHandler.PostChatMessage)
	v1.GET("/chat/history", chatHandler.GetChatHistory)

	return router
}

// postChatMessage submits a chat message and returns the status and body
func postChatMessage(t *testing.T, router *gin.Engine, userID, message string, sessionID *string) (int, []byte) {
	reqBody := handler.ChatMessageRequest{
		UserID:    userID,
		Message:   message,
		SessionID: sessionID,
	}
	body, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Logf("Response body: %s", w.Body.String())
	}
	return w.Code, w.Body.Bytes()
}
