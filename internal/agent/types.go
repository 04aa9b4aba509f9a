// Package agent builds analysis prompts from the ledger, sends them to a
// remote analysis agent and turns its schema-free replies into reports.
package agent

import (
	"context"
	"encoding/json"
)

// Client sends one prompt to an agent. The error return is reserved for
// transport failures; an agent that answers with a failure status does so
// through Result.
type Client interface {
	Send(ctx context.Context, prompt, agentID string) (Result, error)
}

// Result is the envelope every transport produces.
type Result struct {
	Success  bool      `json:"success"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type Response struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// StatusSuccess is the only response status treated as a usable answer.
const StatusSuccess = "success"

// Succeeded reports whether the envelope carries a usable answer.
func (r Result) Succeeded() bool {
	return r.Success && r.Response != nil && r.Response.Status == StatusSuccess
}

// Report is the structured analysis. Every field is optional: nil pointers
// and nil slices mean the agent supplied no usable data.
type Report struct {
	ReportType        *string             `json:"report_type,omitempty"`
	Summary           *string             `json:"summary,omitempty"`
	TotalSpent        *float64            `json:"total_spent,omitempty"`
	CategoryBreakdown []CategoryBreakdown `json:"category_breakdown,omitempty"`
	TopExpenses       []TopExpense        `json:"top_expenses,omitempty"`
	Trends            []Trend             `json:"trends,omitempty"`
	BudgetAlerts      []BudgetAlert       `json:"budget_alerts,omitempty"`
	Insights          []Insight           `json:"insights,omitempty"`
	ChatAnswer        *string             `json:"chat_answer,omitempty"`
}

type CategoryBreakdown struct {
	Category          string  `json:"category"`
	Total             float64 `json:"total"`
	Percentage        float64 `json:"percentage"`
	ItemCount         int     `json:"item_count"`
	IsOverBudget      bool    `json:"is_over_budget"`
	BudgetLimit       float64 `json:"budget_limit"`
	BudgetUtilization float64 `json:"budget_utilization"`
}

type TopExpense struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note"`
	Date     string  `json:"date"`
}

type Trend struct {
	Description      string  `json:"description"`
	ChangePercentage float64 `json:"change_percentage"`
	Direction        string  `json:"direction"`
}

type BudgetAlert struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type Insight struct {
	Text string `json:"text"`
}

// Reply is a parsed agent answer: a structured report, or the raw text when
// the result was not a JSON object.
type Reply struct {
	Report *Report `json:"report,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// DefaultAnswer is shown when a reply carries neither an answer nor text.
const DefaultAnswer = "Analysis complete. See the details below."

// Answer picks the chat text: chat_answer, then summary, then raw text.
func (r Reply) Answer() string {
	if r.Report != nil {
		if r.Report.ChatAnswer != nil {
			return *r.Report.ChatAnswer
		}
		if r.Report.Summary != nil {
			return *r.Report.Summary
		}
	}
	if r.Text != "" {
		return r.Text
	}
	return DefaultAnswer
}
