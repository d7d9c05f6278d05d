package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pulso-health/backend/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockChatStore mocks chat exchange persistence

type MockChatStore struct {
	mock.Mock
}

func (m *MockChatStore) SaveExchange(ctx context.Context, exchange *model.ChatExchange) error {
	args := m.Called(ctx, exchange)
	return args.Error(0)
}

func (m *MockChatStore) ListHistory(ctx context.Context, userID string, limit int) ([]model.ChatExchange, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChatExchange), args.Error(1)
}

func newChatFixture(t *testing.T) (*ChatService, *MockSessionDirectory, *MockProfileReader, *MockChatStore, *MockGenerator) {
	t.Helper()
	sessions := new(MockSessionDirectory)
	profiles := new(MockProfileReader)
	store := new(MockChatStore)
	ai := new(MockGenerator)
	classifier := NewIntentClassifier(sessions, zap.NewNop())
	svc := NewChatService(classifier, profiles, store, ai, nil, zap.NewNop())
	return svc, sessions, profiles, store, ai
}

func TestSendMessage_GeneralHealthQuestion(t *testing.T) {
	svc, _, profiles, store, ai := newChatFixture(t)

	profiles.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)
	ai.On("Generate", mock.Anything, mock.Anything, []byte(nil)).
		Return("Staying hydrated supports a healthy heart rate. 💚", nil)
	store.On("SaveExchange", mock.Anything, mock.Anything).Return(nil)

	exchange, err := svc.SendMessage(context.Background(), "user-1", "How can I keep my heart healthy?", nil, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.IntentGeneralHealth, exchange.Intent)
	assert.Empty(t, exchange.SessionIDs)
	assert.Equal(t, "Staying hydrated supports a healthy heart rate. 💚", exchange.AIResponse)
	store.AssertCalled(t, "SaveExchange", mock.Anything, mock.Anything)
}

func TestSendMessage_ValidationRejectsEmptyAndOversized(t *testing.T) {
	svc, _, _, _, _ := newChatFixture(t)

	_, err := svc.SendMessage(context.Background(), "user-1", "", nil, "", "")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.SendMessage(context.Background(), "user-1", strings.Repeat("a", 2001), nil, "", "")
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSendMessage_MaxLengthMessageIsAccepted(t *testing.T) {
	svc, _, profiles, store, ai := newChatFixture(t)

	profiles.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)
	ai.On("Generate", mock.Anything, mock.Anything, []byte(nil)).Return("Got it!", nil)
	store.On("SaveExchange", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.SendMessage(context.Background(), "user-1", strings.Repeat("a", 2000), nil, "", "")

	assert.NoError(t, err)
}

func TestSendMessage_JSONReplyBecomesClarifyingReply(t *testing.T) {
	svc, _, profiles, store, ai := newChatFixture(t)

	profiles.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)
	ai.On("Generate", mock.Anything, mock.Anything, []byte(nil)).
		Return(`{"prediction": "Normal", "confidence": 0.9}`, nil)
	store.On("SaveExchange", mock.Anything, mock.Anything).Return(nil)

	exchange, err := svc.SendMessage(context.Background(), "user-1", "hello", nil, "", "")

	require.NoError(t, err)
	assert.Equal(t, "I'm here to help! Could you please rephrase your question?", exchange.AIResponse)
}

func TestSendMessage_TransportFailureBecomesRetryReply(t *testing.T) {
	svc, _, profiles, store, ai := newChatFixture(t)

	profiles.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)
	ai.On("Generate", mock.Anything, mock.Anything, []byte(nil)).
		Return("", errors.New("connection refused"))
	store.On("SaveExchange", mock.Anything, mock.Anything).Return(nil)

	exchange, err := svc.SendMessage(context.Background(), "user-1", "hello", nil, "", "")

	require.NoError(t, err, "AI transport failure must not surface as an error")
	assert.Equal(t, "I'm having trouble connecting right now. Please try again in a moment! 🔄", exchange.AIResponse)
}

func TestSendMessage_SessionQueryIncludesContext(t *testing.T) {
	svc, sessions, profiles, store, ai := newChatFixture(t)

	sessions.On("ListRecentSessionIDs", mock.Anything, "user-1", 1).
		Return([]string{"sess-9"}, nil)
	sessions.On("GetSession", mock.Anything, "user-1", "sess-9").
		Return(analysisTestSession(), nil)
	profiles.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)
	ai.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Latest Session")
	}), []byte(nil)).Return("Your last recording looked steady. 💚", nil)
	store.On("SaveExchange", mock.Anything, mock.Anything).Return(nil)

	exchange, err := svc.SendMessage(context.Background(), "user-1", "Tell me about my last session", nil, "", "")

	require.NoError(t, err)
	assert.Equal(t, model.IntentSessionQuery, exchange.Intent)
	assert.Equal(t, []string{"sess-9"}, exchange.SessionIDs)
}

func TestSendMessage_ClassifierStoreFailurePropagates(t *testing.T) {
	svc, sessions, _, _, _ := newChatFixture(t)

	sessions.On("ListRecentSessionIDs", mock.Anything, "user-1", 2).
		Return(nil, errors.New("db down"))

	_, err := svc.SendMessage(context.Background(), "user-1", "compare my recent sessions", nil, "", "")

	assert.Error(t, err)
}

func TestSendMessage_PersistFailureIsAnError(t *testing.T) {
	svc, _, profiles, store, ai := newChatFixture(t)

	profiles.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)
	ai.On("Generate", mock.Anything, mock.Anything, []byte(nil)).Return("Sure!", nil)
	store.On("SaveExchange", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	_, err := svc.SendMessage(context.Background(), "user-1", "hello", nil, "", "")

	assert.Error(t, err)
}

func TestHistory_DelegatesToStore(t *testing.T) {
	svc, _, _, store, _ := newChatFixture(t)

	history := []model.ChatExchange{{ID: "ex-1", UserID: "user-1"}}
	store.On("ListHistory", mock.Anything, "user-1", 5).Return(history, nil)

	got, err := svc.History(context.Background(), "user-1", 5)

	require.NoError(t, err)
	assert.Equal(t, history, got)
}
