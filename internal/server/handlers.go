package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/concepts"
	"github.com/abhisek/socratic/internal/session"
)

type analyzeRequest struct {
	DocumentText string `json:"documentText" binding:"required"`
}

type startRequest struct {
	Title    string               `json:"title" binding:"required,max=200"`
	Concepts []assessment.Concept `json:"concepts" binding:"required,min=1,max=500,dive"`
}

type listQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=active completed abandoned"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required,max=40000"`
}

type turnRequest struct {
	assessment.RawSignal
	UserContent string `json:"userContent" binding:"max=40000"`
	Reply       string `json:"reply" binding:"max=40000"`
}

type startResponse struct {
	Session *assessment.SessionState `json:"session"`
	Opening *assessment.Message      `json:"opening"`
}

type messageResponse struct {
	Reply        *assessment.Message       `json:"reply"`
	Signal       *assessment.Signal        `json:"signal"`
	Level        assessment.LevelDecision  `json:"level"`
	CurrentLevel int                       `json:"currentLevel"`
	Engagement   assessment.Engagement     `json:"engagementStatus"`
	Status       assessment.Status         `json:"status"`
	Deltas       []assessment.TaggedDelta  `json:"deltas,omitempty"`
	Version      int64                     `json:"version"`
	Scores       []assessment.ConceptScore `json:"conceptScores"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) analyzeConcepts(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if s.analyzer == nil {
		s.fail(c, ErrExtractorUnavailable)
		return
	}

	analysis, err := s.analyzer.Analyze(c.Request.Context(), req.DocumentText)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (s *Server) startSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	state, err := s.sessions.Start(c.Request.Context(), session.StartInput{
		Title:    req.Title,
		Concepts: assessment.Catalog(req.Concepts),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := startResponse{Session: state}
	if len(state.Messages) > 0 {
		resp.Opening = &state.Messages[0]
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listSessions(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	list, err := s.sessions.List(c.Request.Context(), session.ListOptions{
		Status: assessment.Status(q.Status),
		Limit:  q.Limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []session.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (s *Server) getSession(c *gin.Context) {
	state, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := s.sessions.Converse(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeResponse(out))
}

func (s *Server) submitTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := s.sessions.ProcessTurn(c.Request.Context(), c.Param("id"), session.SignalInput{
		Signal:      req.RawSignal,
		UserContent: req.UserContent,
		Reply:       req.Reply,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeResponse(out))
}

func (s *Server) endSession(c *gin.Context) {
	report, err := s.sessions.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) abandonSession(c *gin.Context) {
	state, err := s.sessions.Abandon(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Summarize(state))
}

func (s *Server) getReport(c *gin.Context) {
	report, err := s.sessions.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func outcomeResponse(out *session.TurnOutcome) messageResponse {
	st := out.State
	resp := messageResponse{
		Reply:        out.Reply,
		Level:        assessment.LevelDecision{From: st.CurrentLevel, To: st.CurrentLevel, Rule: assessment.RuleNone},
		CurrentLevel: st.CurrentLevel,
		Engagement:   st.Engagement,
		Status:       st.Status,
		Version:      st.Version,
		Scores:       st.Ledger.Scores(),
	}
	if out.Turn != nil {
		sig := out.Turn.Signal
		resp.Signal = &sig
		resp.Level = out.Turn.Level
		resp.Deltas = assessment.Tag(out.Turn.Deltas)
	}
	return resp
}

var _ Analyzer = (*concepts.Extractor)(nil)
