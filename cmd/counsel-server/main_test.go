package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("counsel-server", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-addr", ":9090", "-log-mode", "dev"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.LogMode != "dev" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

type cannedGenerator struct {
	responses []string
	calls     int
}

func (g *cannedGenerator) Generate(context.Context, []counsel.Message) (string, error) {
	resp := g.responses[g.calls%len(g.responses)]
	g.calls++
	return resp, nil
}

type recordingStore struct {
	upserts []counsel.SessionSummary
	byID    map[string]*counsel.SessionSummary
}

func (m *recordingStore) UpsertSessionSummary(_ context.Context, rec counsel.SessionSummary) error {
	m.upserts = append(m.upserts, rec)
	return nil
}

func (m *recordingStore) SessionSummaryByID(_ context.Context, sessionID string) (*counsel.SessionSummary, error) {
	return m.byID[sessionID], nil
}

func (m *recordingStore) SessionSummariesByUser(_ context.Context, userID string, _ int) ([]counsel.SessionSummary, error) {
	var out []counsel.SessionSummary
	for _, rec := range m.byID {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func testServer(gen counsel.Generator, store counsel.SummaryStore) *server {
	cfg := counsel.DefaultConfig()
	cfg.Memory.UseSummaryMemory = store != nil
	return newServer(cfg, gen, store, nil, nil)
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	gen := &cannedGenerator{responses: []string{"那時候你的想法是什麼？\n【emotion】負向\n【stage】澄清問題"}}
	srv := testServer(gen, &recordingStore{byID: map[string]*counsel.SessionSummary{}})
	router := srv.routes()

	body := `{"user_id":"u1","conversation_id":"c1","messages":[{"role":"user","content":"我最近壓力很大"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(resp.Reply, "那時候你的想法是什麼？") {
		t.Fatalf("Reply=%q", resp.Reply)
	}
	if resp.SessionID == "" {
		t.Fatalf("missing session_id")
	}
	if resp.Stage != counsel.StageClarify {
		t.Fatalf("Stage=%s", resp.Stage)
	}
	if resp.Analysis.Emotion != "負向" {
		t.Fatalf("Analysis=%+v", resp.Analysis)
	}
	if resp.Closed {
		t.Fatalf("Closed=true for a non-closure turn")
	}
}

func TestHandleChat_ClosurePersistsAndRotates(t *testing.T) {
	t.Parallel()

	gen := &cannedGenerator{responses: []string{"你覺得今天談話中哪個部分最有幫助？\n【stage】結案"}}
	store := &recordingStore{byID: map[string]*counsel.SessionSummary{}}
	srv := testServer(gen, store)
	router := srv.routes()

	body := `{"user_id":"u1","conversation_id":"c1","messages":[{"role":"user","content":"我想結束了"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Closed {
		t.Fatalf("Closed=false for a closure turn")
	}
	if len(store.upserts) != 1 {
		t.Fatalf("upserts=%d, want 1", len(store.upserts))
	}
	if store.upserts[0].SessionID != resp.SessionID {
		t.Fatalf("persisted session %q, response session %q", store.upserts[0].SessionID, resp.SessionID)
	}
}

func TestHandleChat_BadRequest(t *testing.T) {
	t.Parallel()

	srv := testServer(&cannedGenerator{responses: []string{"x"}}, nil)
	router := srv.routes()

	for _, body := range []string{
		`not json`,
		`{"messages":[{"role":"user","content":"hi"}]}`,
		`{"conversation_id":"c1","messages":[]}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status=%d for body %q", w.Code, body)
		}
	}
}

func TestHandleSession(t *testing.T) {
	t.Parallel()

	store := &recordingStore{byID: map[string]*counsel.SessionSummary{
		"sess-1": {UserID: "u1", SessionID: "sess-1", SummaryText: "摘要"},
	}}
	srv := testServer(&cannedGenerator{responses: []string{"x"}}, store)
	router := srv.routes()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/absent", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d for absent session", w.Code)
	}
}

func TestHandleSession_StoreDisabled(t *testing.T) {
	t.Parallel()

	srv := testServer(&cannedGenerator{responses: []string{"x"}}, nil)
	router := srv.routes()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", w.Code)
	}
}

func TestHandleUserSessions_BadLimit(t *testing.T) {
	t.Parallel()

	store := &recordingStore{byID: map[string]*counsel.SessionSummary{}}
	srv := testServer(&cannedGenerator{responses: []string{"x"}}, store)
	router := srv.routes()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/u1/sessions?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", w.Code)
	}
}

func TestHandleMemory(t *testing.T) {
	t.Parallel()

	gen := &cannedGenerator{responses: []string{"那時候你的想法是什麼？\n【stage】澄清問題"}}
	srv := testServer(gen, nil)
	router := srv.routes()

	// Unknown conversation first.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/c9/memory", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d for unknown conversation", w.Code)
	}

	body := `{"conversation_id":"c1","messages":[{"role":"user","content":"你好"}]}`
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("chat status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/c1/memory", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("memory status=%d", w.Code)
	}
	var mem counsel.MemorySummary
	if err := json.Unmarshal(w.Body.Bytes(), &mem); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if mem.TurnCount != 2 || mem.CurrentStage != counsel.StageClarify {
		t.Fatalf("memory=%+v", mem)
	}
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	srv := testServer(&cannedGenerator{responses: []string{"x"}}, nil)
	router := srv.routes()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}
