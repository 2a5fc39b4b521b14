package counsel

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Emotion/belief markers searched for inside history entries. The model phrases
// values freely ("略為正向", "非理性信念"), so classification is by substring.
const (
	markerPositive   = "正向"
	markerNegative   = "負向"
	markerRational   = "理性"
	markerIrrational = "非理性"
)

// Fixed report strings for empty histories.
const (
	noEmotionRecord = "無情緒記錄"
	noBeliefRecord  = "無信念記錄"
)

// EmotionTrend counts positive/neutral/negative entries and renders the fixed
// "正向:<n> 中性:<n> 負向:<n>" line. An empty history yields 無情緒記錄.
func EmotionTrend(history []string) string {
	if len(history) == 0 {
		return noEmotionRecord
	}
	positive, negative := 0, 0
	for _, e := range history {
		if strings.Contains(e, markerPositive) {
			positive++
		}
		if strings.Contains(e, markerNegative) {
			negative++
		}
	}
	neutral := len(history) - positive - negative
	return fmt.Sprintf("正向:%d 中性:%d 負向:%d", positive, neutral, negative)
}

// BeliefChange classifies the belief history four ways by which belief-type
// markers appear anywhere in it. 非理性 contains 理性 as a substring, so the
// rational test runs with 非理性 occurrences removed; otherwise the
// "persistently irrational" outcome could never be reached.
func BeliefChange(history []string) string {
	if len(history) == 0 {
		return noBeliefRecord
	}
	hasIrrational, hasRational := false, false
	for _, b := range history {
		if strings.Contains(b, markerIrrational) {
			hasIrrational = true
		}
		if strings.Contains(strings.ReplaceAll(b, markerIrrational, ""), markerRational) {
			hasRational = true
		}
	}
	switch {
	case hasIrrational && hasRational:
		return "從非理性轉為理性"
	case hasIrrational:
		return "持續非理性信念"
	case hasRational:
		return "持續理性信念"
	default:
		return "未識別信念類型"
	}
}

// FallbackSummary is the counted summary used when the summarizer collaborator
// is unavailable or returns nothing.
func FallbackSummary(s *Session) string {
	return fmt.Sprintf("對話共 %d 輪，包含 %d 個回合。", s.TurnCount, len(s.Messages))
}

// SessionSummary is the persisted snapshot of a finished (or closing) session.
// SessionID is the upsert key: a session has at most one stored record.
type SessionSummary struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	SummaryText    string    `json:"summary_text"`
	StageCompleted string    `json:"stage_completed"`
	EmotionTrend   string    `json:"emotion_trend"`
	BeliefChange   string    `json:"belief_change"`
	TotalTurns     int       `json:"total_turns"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SummaryStore persists session summaries. Implementations must make
// UpsertSessionSummary idempotent on SessionID and safe for concurrent use
// across distinct sessions.
type SummaryStore interface {
	UpsertSessionSummary(ctx context.Context, rec SessionSummary) error
	SessionSummaryByID(ctx context.Context, sessionID string) (*SessionSummary, error)
	SessionSummariesByUser(ctx context.Context, userID string, limit int) ([]SessionSummary, error)
}
