package counsel

import "testing"

func TestNewSession(t *testing.T) {
	t.Parallel()

	s := NewSession("")
	if s.UserID != DefaultUserID {
		t.Fatalf("UserID=%q, want %q", s.UserID, DefaultUserID)
	}
	if s.Stage != StageClarify {
		t.Fatalf("Stage=%s, want %s", s.Stage, StageClarify)
	}
	if s.ID == "" {
		t.Fatalf("missing session ID")
	}
}

func TestSyncHistory_AppendsOnlyNewSuffix(t *testing.T) {
	t.Parallel()

	s := NewSession("u1")
	first := []Message{{Role: RoleUser, Content: "你好"}}
	if added := s.SyncHistory(first); added != 1 {
		t.Fatalf("added=%d, want 1", added)
	}
	s.AddMessage(RoleAssistant, "歡迎你來，最近過得如何？")

	// The client re-sends the full history plus one new user message.
	resent := []Message{
		{Role: RoleUser, Content: "你好"},
		{Role: RoleAssistant, Content: "歡迎你來，最近過得如何？"},
		{Role: RoleUser, Content: "我最近壓力很大"},
	}
	if added := s.SyncHistory(resent); added != 1 {
		t.Fatalf("added=%d, want 1", added)
	}
	if s.TurnCount != 3 {
		t.Fatalf("TurnCount=%d, want 3", s.TurnCount)
	}
	if added := s.SyncHistory(resent); added != 0 {
		t.Fatalf("resync added=%d, want 0", added)
	}
}

func TestApplyAnalysis(t *testing.T) {
	t.Parallel()

	s := NewSession("u1")
	s.ApplyAnalysis(Analysis{Emotion: "負向", Context: Unknown, Belief: "非理性", Stage: "蒐集證據"})
	if s.Stage != StageEvidence {
		t.Fatalf("Stage=%s, want %s", s.Stage, StageEvidence)
	}
	if len(s.Emotions) != 1 || len(s.Beliefs) != 1 {
		t.Fatalf("histories=%v/%v, want one entry each", s.Emotions, s.Beliefs)
	}

	// Unknown fields leave histories untouched; undefined stage text keeps the
	// current stage.
	s.ApplyAnalysis(Analysis{Emotion: Unknown, Context: Unknown, Belief: Unknown, Stage: "暖身"})
	if s.Stage != StageEvidence {
		t.Fatalf("Stage=%s, undefined stage text must not move the stage", s.Stage)
	}
	if len(s.Emotions) != 1 || len(s.Beliefs) != 1 {
		t.Fatalf("sentinel fields must not append to histories")
	}

	// Regressions are adopted as-is.
	s.ApplyAnalysis(Analysis{Emotion: Unknown, Context: Unknown, Belief: Unknown, Stage: "回到澄清問題"})
	if s.Stage != StageClarify {
		t.Fatalf("Stage=%s, want regression to %s", s.Stage, StageClarify)
	}
}

func TestSessionReset(t *testing.T) {
	t.Parallel()

	s := NewSession("u1")
	oldID := s.ID
	s.AddMessage(RoleUser, "你好")
	s.ApplyAnalysis(Analysis{Emotion: "正向", Context: Unknown, Belief: "理性", Stage: "結案"})

	s.Reset()
	if s.ID == oldID {
		t.Fatalf("Reset must mint a new session ID")
	}
	if s.UserID != "u1" {
		t.Fatalf("UserID=%q, must survive reset", s.UserID)
	}
	if s.Stage != StageClarify || s.TurnCount != 0 {
		t.Fatalf("Stage=%s TurnCount=%d after reset", s.Stage, s.TurnCount)
	}
	if len(s.Messages) != 0 || len(s.Emotions) != 0 || len(s.Beliefs) != 0 {
		t.Fatalf("histories must be cleared on reset")
	}
}

func TestSessionSnapshot(t *testing.T) {
	t.Parallel()

	s := NewSession("u1")
	s.AddMessage(RoleUser, "你好")
	s.AddMessage(RoleAssistant, "今天想聊聊哪個部分？")
	s.Emotions = []string{"負向", "中性"}
	s.Beliefs = []string{"非理性", "理性"}
	s.Stage = StageClosure

	rec := s.Snapshot("本次會談聚焦於工作壓力。")
	if rec.SessionID != s.ID || rec.UserID != "u1" {
		t.Fatalf("identity fields wrong: %+v", rec)
	}
	if rec.StageCompleted != string(StageClosure) {
		t.Fatalf("StageCompleted=%q", rec.StageCompleted)
	}
	if rec.TotalTurns != 2 {
		t.Fatalf("TotalTurns=%d, want 2", rec.TotalTurns)
	}
	if rec.EmotionTrend != "正向:0 中性:1 負向:1" {
		t.Fatalf("EmotionTrend=%q", rec.EmotionTrend)
	}
	if rec.BeliefChange != "從非理性轉為理性" {
		t.Fatalf("BeliefChange=%q", rec.BeliefChange)
	}
	if rec.SummaryText != "本次會談聚焦於工作壓力。" {
		t.Fatalf("SummaryText=%q", rec.SummaryText)
	}
}
