package main

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/socratic-counsel/counsel"
)

type server struct {
	cfg        counsel.Config
	gen        counsel.Generator
	store      counsel.SummaryStore
	summarizer counsel.Summarizer
	log        *zap.SugaredLogger

	mu     sync.Mutex
	agents map[string]*counsel.Agent
}

func newServer(cfg counsel.Config, gen counsel.Generator, store counsel.SummaryStore, summarizer counsel.Summarizer, log *zap.SugaredLogger) *server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &server{
		cfg:        cfg,
		gen:        gen,
		store:      store,
		summarizer: summarizer,
		log:        log,
		agents:     make(map[string]*counsel.Agent),
	}
}

func (s *server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthcheck", s.handleHealthcheck)
	router.GET("/metrics", gin.WrapH(counsel.MetricsHandler()))

	api := router.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/conversations/:conversation_id/memory", s.handleMemory)
	api.GET("/sessions/:session_id", s.handleSession)
	api.GET("/users/:user_id/sessions", s.handleUserSessions)
	return router
}

// agentFor returns the conversation's agent, creating it on first use. Agents
// are never evicted; a long-lived deployment is expected to front this with a
// bounded number of active conversations.
func (s *server) agentFor(conversationID, userID string) *counsel.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[conversationID]
	if !ok {
		agent = counsel.NewAgent(s.cfg, s.gen, s.store, s.summarizer, s.log)
		s.agents[conversationID] = agent
	}
	if userID != "" {
		agent.SetUserID(userID)
	}
	return agent
}

type chatRequest struct {
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id" binding:"required"`
	Messages       []counsel.Message `json:"messages" binding:"required"`
}

type chatResponse struct {
	Reply       string           `json:"reply"`
	SessionID   string           `json:"session_id"`
	Stage       counsel.Stage    `json:"stage"`
	Analysis    counsel.Analysis `json:"analysis"`
	Closed      bool             `json:"closed"`
	MemoryError string           `json:"memory_error,omitempty"`
}

func (s *server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages must not be empty"})
		return
	}

	agent := s.agentFor(req.ConversationID, req.UserID)
	sessionID := agent.SessionID()

	reply, err := agent.Process(c.Request.Context(), req.Messages)
	if err != nil {
		s.log.Errorw("turn failed", "conversation_id", req.ConversationID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	resp := chatResponse{
		Reply:     reply,
		SessionID: sessionID,
		Stage:     agent.CurrentStage(),
		Analysis:  agent.LastAnalysis(),
		Closed:    agent.SessionID() != sessionID,
	}
	if merr := agent.LastMemoryError(); merr != nil {
		resp.MemoryError = merr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) handleMemory(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	s.mu.Lock()
	agent, ok := s.agents[conversationID]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
		return
	}
	c.JSON(http.StatusOK, agent.MemorySummary(c.Request.Context()))
}

func (s *server) handleSession(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary memory is disabled"})
		return
	}
	rec, err := s.store.SessionSummaryByID(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for session"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) handleUserSessions(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary memory is disabled"})
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	recs, err := s.store.SessionSummariesByUser(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": recs})
}

func (s *server) handleHealthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
