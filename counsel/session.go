package counsel

import (
	"time"

	"github.com/google/uuid"
)

// DefaultUserID is used until the caller identifies the user.
const DefaultUserID = "default_user"

// Session is the live state of one counseling conversation. It is mutated only
// by the owning Agent, under the agent's per-session lock; it must not be
// shared across concurrent sessions.
type Session struct {
	ID        string
	UserID    string
	Stage     Stage
	TurnCount int
	Emotions  []string
	Beliefs   []string
	Messages  []Message
	StartedAt time.Time
}

// NewSession starts a fresh session at the clarify stage.
func NewSession(userID string) *Session {
	if userID == "" {
		userID = DefaultUserID
	}
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     StageClarify,
		StartedAt: time.Now(),
	}
}

// AddMessage appends one message to the session memory and bumps the turn
// counter. The counter counts messages, not exchanges: 3 user + 3 assistant
// messages make TurnCount 6.
func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
	s.TurnCount++
}

// SyncHistory appends the tail of the caller-supplied history that the session
// has not recorded yet, and returns how many messages were added. Chat UIs
// re-send the whole history every turn; only the new suffix may be counted.
func (s *Session) SyncHistory(messages []Message) int {
	if len(messages) <= len(s.Messages) {
		return 0
	}
	added := 0
	for _, msg := range messages[len(s.Messages):] {
		s.AddMessage(msg.Role, msg.Content)
		added++
	}
	return added
}

// ApplyAnalysis folds one turn's extracted signals into the session: emotion
// and belief values are appended to their histories when known, and the stage
// moves to whichever defined stage the model named first. The new stage is
// adopted as-is, including regressions to an earlier stage.
func (s *Session) ApplyAnalysis(a Analysis) {
	if a.Emotion != Unknown {
		s.Emotions = append(s.Emotions, a.Emotion)
	}
	if a.Belief != Unknown {
		s.Beliefs = append(s.Beliefs, a.Belief)
	}
	if a.Stage != Unknown {
		if stage, ok := MatchStage(a.Stage); ok {
			s.Stage = stage
		}
	}
}

// Reset reopens the session for a new conversation: new identifier, clarify
// stage, cleared counters, histories and memory. The user identity survives.
func (s *Session) Reset() {
	s.ID = uuid.NewString()
	s.Stage = StageClarify
	s.TurnCount = 0
	s.Emotions = nil
	s.Beliefs = nil
	s.Messages = nil
	s.StartedAt = time.Now()
}

// EmotionTrend summarizes the session's emotion history.
func (s *Session) EmotionTrend() string { return EmotionTrend(s.Emotions) }

// BeliefChange summarizes the session's belief history.
func (s *Session) BeliefChange() string { return BeliefChange(s.Beliefs) }

// Snapshot freezes the session into a persistable summary record.
func (s *Session) Snapshot(summaryText string) SessionSummary {
	return SessionSummary{
		UserID:         s.UserID,
		SessionID:      s.ID,
		SummaryText:    summaryText,
		StageCompleted: string(s.Stage),
		EmotionTrend:   s.EmotionTrend(),
		BeliefChange:   s.BeliefChange(),
		TotalTurns:     s.TurnCount,
	}
}
