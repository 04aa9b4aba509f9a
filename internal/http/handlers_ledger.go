package http

import (
	"net/http"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
)

type expenseRequest struct {
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Note     string     `json:"note"`
	Date     *core.Date `json:"date"`
}

type expenseUpdateRequest struct {
	Amount core.Money `json:"amount"`
	Note   string     `json:"note"`
}

type topUpRequest struct {
	Amount core.Money `json:"amount"`
	Note   string     `json:"note"`
	Date   *core.Date `json:"date"`
}

type borrowRequest struct {
	Type       core.BorrowType `json:"type"`
	PersonName string          `json:"personName"`
	Amount     core.Money      `json:"amount"`
	Note       string          `json:"note"`
	Date       *core.Date      `json:"date"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type budgetRequest struct {
	Limit core.Money `json:"limit"`
}

type sampleModeRequest struct {
	Enabled bool `json:"enabled"`
}

type sampleModeResponse struct {
	Mode    string `json:"mode"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.app.State()).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.app.Summary()).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	e, err := s.app.AddExpense(r.Context(), req.Amount, sanitizeInput(req.Category),
		sanitizeInput(req.Note), dateOf(req.Date))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(e).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	e, err := s.app.UpdateExpense(r.Context(), pathValue(r, "id"), req.Amount, sanitizeInput(req.Note))
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RemoveExpense(r.Context(), pathValue(r, "id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	t, err := s.app.AddTopUp(r.Context(), req.Amount, sanitizeInput(req.Note), dateOf(req.Date))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(t).Write(w)
}

func (s *Server) handleCreateBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	b, err := s.app.AddBorrowRecord(r.Context(), req.Type, sanitizeInput(req.PersonName), req.Amount,
		sanitizeInput(req.Note), dateOf(req.Date))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(b).Write(w)
}

func (s *Server) handleSettleBorrow(w http.ResponseWriter, r *http.Request) {
	if err := s.app.SettleBorrowRecord(r.Context(), pathValue(r, "id")); err != nil {
		writeError(w, r, applog.OpSettle, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteBorrow(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RemoveBorrowRecord(r.Context(), pathValue(r, "id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	name, err := s.app.AddCategory(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(nameRequest{Name: name}).Write(w)
}

// handleDeleteCategory answers 409 with the dependent count when expenses
// still use the category and the request did not carry confirm=true.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	confirmed, err := queryBool(r, "confirm")
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	res, err := s.app.RemoveCategory(r.Context(), pathValue(r, "name"), confirmed)
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if res.Pending {
		NewJSONResponse().Status(http.StatusConflict).Body(res).Write(w)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	name, err := s.app.AddTopUpPreset(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(nameRequest{Name: name}).Write(w)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RemoveTopUpPreset(r.Context(), pathValue(r, "name")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	b, err := s.app.SetBudgetLimit(r.Context(), pathValue(r, "category"), req.Limit)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(b).Write(w)
}

func (s *Server) handleSampleMode(w http.ResponseWriter, r *http.Request) {
	var req sampleModeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	changed := s.app.SetSampleMode(r.Context(), req.Enabled)
	NewJSONResponse().Body(sampleModeResponse{Mode: s.app.Mode().Name(), Changed: changed}).Write(w)
}
