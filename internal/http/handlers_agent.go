package http

import (
	"net/http"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
)

type reportRequest struct {
	Period core.Period `json:"period"`
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	res, err := s.app.GenerateReport(r.Context(), req.Period)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.app.LastReport()
	if !ok {
		NotFoundError("no report generated yet").Write(w)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

// handleAsk answers with the agent turn. When the agent fails the turn is
// still recorded in the history and the response carries the failure.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}
	msg, err := s.app.Ask(r.Context(), sanitizeInput(req.Question))
	if err != nil {
		writeError(w, r, applog.OpChat, err)
		return
	}
	NewJSONResponse().Body(msg).Write(w)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.app.Chat()).Write(w)
}
