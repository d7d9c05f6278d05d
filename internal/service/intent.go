package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulso-health/backend/pkg/model"
	"go.uber.org/zap"
)

// SessionDirectory is the session lookup collaborator used for intent
// resolution and context assembly
type SessionDirectory interface {
	GetSession(ctx context.Context, userID, sessionID string) (*model.ECGSession, error)
	ListRecentSessionIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

// Keyword sets matched case-insensitively against the message. Comparison and
// trend are checked before session_query on purpose: "heart rate" or "hrv"
// would otherwise mask a trend request that also mentions "week".
var (
	comparisonKeywords   = []string{"compare", "comparison", "versus", "vs", "difference"}
	trendKeywords        = []string{"trend", "week", "month", "over time", "history", "progress"}
	sessionQueryKeywords = []string{"last session", "recent", "my session", "today", "yesterday", "heart rate", "hrv", "ecg"}
)

// Session counts attached per intent
const (
	comparisonSessionCount = 2
	trendSessionCount      = 7
	querySessionCount      = 1
)

// IntentClassifier decides what a chat message is about and which sessions to
// attach as context
type IntentClassifier struct {
	sessions SessionDirectory
	logger   *zap.Logger
}

// NewIntentClassifier creates a new IntentClassifier
func NewIntentClassifier(sessions SessionDirectory, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{
		sessions: sessions,
		logger:   logger,
	}
}

// Classify resolves the intent of a message and the session ids to fetch.
// An explicit session id always wins regardless of message content.
func (c *IntentClassifier) Classify(ctx context.Context, userID, message string, explicitSessionID *string) (model.Intent, []string, error) {
	if explicitSessionID != nil && *explicitSessionID != "" {
		return model.IntentSessionSpecific, []string{*explicitSessionID}, nil
	}

	lowered := strings.ToLower(message)

	if containsAny(lowered, comparisonKeywords) {
		ids, err := c.sessions.ListRecentSessionIDs(ctx, userID, comparisonSessionCount)
		if err != nil {
			return "", nil, fmt.Errorf("failed to list recent sessions: %w", err)
		}
		return model.IntentComparison, ids, nil
	}

	if containsAny(lowered, trendKeywords) {
		ids, err := c.sessions.ListRecentSessionIDs(ctx, userID, trendSessionCount)
		if err != nil {
			return "", nil, fmt.Errorf("failed to list recent sessions: %w", err)
		}
		return model.IntentTrendAnalysis, ids, nil
	}

	if containsAny(lowered, sessionQueryKeywords) {
		ids, err := c.sessions.ListRecentSessionIDs(ctx, userID, querySessionCount)
		if err != nil {
			return "", nil, fmt.Errorf("failed to list recent sessions: %w", err)
		}
		return model.IntentSessionQuery, ids, nil
	}

	return model.IntentGeneralHealth, nil, nil
}

// BuildContext renders the resolved sessions into labeled text blocks for the
// chat prompt. Sessions that cannot be loaded are skipped without error; the
// context is empty when nothing resolves.
func (c *IntentClassifier) BuildContext(ctx context.Context, userID string, sessionIDs []string) string {
	if len(sessionIDs) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		session, err := c.sessions.GetSession(ctx, userID, sessionID)
		if err != nil {
			c.logger.Warn("skipping unresolvable session in chat context",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			continue
		}

		label := "Latest Session"
		if len(sessionIDs) > 1 {
			label = fmt.Sprintf("Session %d", len(blocks)+1)
		}

		blocks = append(blocks, fmt.Sprintf(`## %s (ID: %s)
- Date: %s
- Duration: %.0f seconds
- Average Heart Rate: %.1f BPM
- Max Heart Rate: %.1f BPM
- Min Heart Rate: %.1f BPM
- R-Peaks Detected: %d`,
			label,
			sessionID,
			session.CreatedAt.Format("2006-01-02 15:04"),
			session.DurationSeconds,
			floatOrZero(session.AverageHeartRate),
			floatOrZero(session.MaxHeartRate),
			floatOrZero(session.MinHeartRate),
			session.RPeakCount,
		))
	}

	return strings.Join(blocks, "\n\n")
}

func containsAny(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
