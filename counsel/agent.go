package counsel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Generator is the external text-generation collaborator: a sequence of
// role-tagged messages in, generated text out.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Summarizer produces the free-text session summary persisted at closure.
// Implementations may call back into a model; an empty result (or an error)
// makes the agent fall back to the counted summary.
type Summarizer interface {
	SummarizeSession(ctx context.Context, s *Session) (string, error)
}

// MemorySummary is the caller-facing view of the live session state.
type MemorySummary struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	TurnCount    int    `json:"turn_count"`
	CurrentStage Stage  `json:"current_stage"`
	EmotionTrend string `json:"emotion_trend"`
	BeliefChange string `json:"belief_change"`
	SummaryText  string `json:"summary_text"`
}

// Agent drives one conversation: it builds the stage prompt, invokes the
// generator, extracts analysis signals, advances the session state machine and
// persists a summary when the closure stage is reached. One Agent owns one
// live session; turns of that session are serialized by an internal lock.
// Distinct sessions get distinct Agents and may run concurrently.
type Agent struct {
	mu         sync.Mutex
	cfg        Config
	prompts    *PromptBuilder
	gen        Generator
	summarizer Summarizer
	store      SummaryStore
	log        *zap.SugaredLogger

	session       *Session
	lastAnalysis  Analysis
	lastMemoryErr error
}

// NewAgent wires an agent for a new session. summarizer and store may be nil;
// the agent then skips summarization and persistence respectively.
func NewAgent(cfg Config, gen Generator, store SummaryStore, summarizer Summarizer, log *zap.SugaredLogger) *Agent {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	pb := NewPromptBuilder()
	if cfg.Prompt.ContextWindowSize > 0 {
		pb.WindowSize = cfg.Prompt.ContextWindowSize
	}
	return &Agent{
		cfg:          cfg,
		prompts:      pb,
		gen:          gen,
		summarizer:   summarizer,
		store:        store,
		log:          log,
		session:      NewSession(DefaultUserID),
		lastAnalysis: EmptyAnalysis(),
	}
}

// SetUserID names the user for the current and subsequent sessions.
func (a *Agent) SetUserID(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if userID = strings.TrimSpace(userID); userID != "" {
		a.session.UserID = userID
	}
}

// SessionID returns the current session identifier.
func (a *Agent) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.ID
}

// CurrentStage returns the current session's counseling stage.
func (a *Agent) CurrentStage() Stage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Stage
}

// Process runs the full per-turn protocol for the supplied conversation
// history and returns the generated response text. Generation failures abort
// the turn; memory and persistence failures are soft and never withhold a
// successfully generated response (inspect LastMemoryError for those).
func (a *Agent) Process(ctx context.Context, messages []Message) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prompt := messages
	if a.cfg.Prompt.UseSocraticTemplate {
		formatted, err := a.prompts.FormatConversation(messages, true, a.session.Stage)
		if err != nil {
			recordTurn("prompt_error")
			return "", err
		}
		prompt = formatted
	}

	start := time.Now()
	response, err := a.gen.Generate(ctx, prompt)
	observeGeneration(time.Since(start))
	if err != nil {
		recordTurn("generation_error")
		return "", &GenerationError{Err: err}
	}

	a.lastAnalysis = ExtractAnalysis(response)
	a.updateMemory(ctx, messages, response, a.lastAnalysis)

	recordTurn("ok")
	return response, nil
}

// updateMemory applies the turn to the session state machine and, on closure,
// persists the summary and resets the session. All failures here are recorded
// and logged, never returned up through Process.
func (a *Agent) updateMemory(ctx context.Context, messages []Message, response string, analysis Analysis) {
	a.lastMemoryErr = nil

	a.session.SyncHistory(messages)
	a.session.AddMessage(RoleAssistant, response)
	a.session.ApplyAnalysis(analysis)

	if !analysis.IsClosure() {
		return
	}
	recordClosure()

	if a.cfg.Memory.AutoSaveOnClosure {
		if err := a.saveSession(ctx); err != nil {
			a.lastMemoryErr = err
			recordPersistenceFailure()
			a.log.Errorw("failed to persist session summary",
				"session_id", a.session.ID,
				"error", err,
			)
		} else {
			a.log.Infow("session summary persisted",
				"session_id", a.session.ID,
				"total_turns", a.session.TurnCount,
			)
		}
	}

	// The conversation concluded either way; reopen at the clarify stage
	// under a fresh identifier.
	a.session.Reset()
}

func (a *Agent) saveSession(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	rec := a.session.Snapshot(a.summaryText(ctx))
	if err := a.store.UpsertSessionSummary(ctx, rec); err != nil {
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			err = &PersistenceError{Op: "upsert", Err: err}
		}
		return err
	}
	return nil
}

// summaryText asks the summarizer collaborator for the session summary and
// falls back to the counted form when it is missing, empty or failing.
func (a *Agent) summaryText(ctx context.Context) string {
	if a.summarizer != nil {
		text, err := a.summarizer.SummarizeSession(ctx, a.session)
		if err != nil {
			a.log.Warnw("session summarizer failed, using fallback summary",
				"session_id", a.session.ID,
				"error", err,
			)
		} else if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return FallbackSummary(a.session)
}

// LastAnalysis returns the signals extracted from the most recent turn.
func (a *Agent) LastAnalysis() Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAnalysis
}

// LastMemoryError reports the soft failure (if any) recorded during the most
// recent turn's memory update.
func (a *Agent) LastMemoryError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastMemoryErr
}

// MemorySummary snapshots the live session state for display.
func (a *Agent) MemorySummary(ctx context.Context) MemorySummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return MemorySummary{
		SessionID:    a.session.ID,
		UserID:       a.session.UserID,
		TurnCount:    a.session.TurnCount,
		CurrentStage: a.session.Stage,
		EmotionTrend: a.session.EmotionTrend(),
		BeliefChange: a.session.BeliefChange(),
		SummaryText:  a.summaryText(ctx),
	}
}
