package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyObject(t *testing.T) {
	raw := json.RawMessage(`{
		"report_type": "weekly",
		"summary": "You spent less than last week.",
		"total_spent": 142.5,
		"category_breakdown": [
			{"category": "Food", "total": 112.5, "percentage": 78.9, "item_count": 2, "is_over_budget": false, "budget_limit": 400, "budget_utilization": 28.1},
			"not an object"
		],
		"top_expenses": [{"category": "Food", "amount": "99.00", "note": "Dinner", "date": "2026-10-18"}],
		"trends": [{"description": "Food up", "change_percentage": 12, "direction": "up"}],
		"budget_alerts": [{"category": "Travel", "message": "No limit set", "severity": "info"}],
		"insights": ["Cook more", {"text": "Travel is flat"}, {"text": ""}, 42]
	}`)

	reply := ParseReply(raw)
	require.NotNil(t, reply.Report)
	r := reply.Report

	require.NotNil(t, r.ReportType)
	assert.Equal(t, "weekly", *r.ReportType)
	require.NotNil(t, r.TotalSpent)
	assert.InDelta(t, 142.5, *r.TotalSpent, 1e-9)
	assert.Nil(t, r.ChatAnswer)

	require.Len(t, r.CategoryBreakdown, 1)
	assert.Equal(t, CategoryBreakdown{
		Category: "Food", Total: 112.5, Percentage: 78.9, ItemCount: 2,
		BudgetLimit: 400, BudgetUtilization: 28.1,
	}, r.CategoryBreakdown[0])

	require.Len(t, r.TopExpenses, 1)
	assert.InDelta(t, 99.0, r.TopExpenses[0].Amount, 1e-9, "numeric strings are accepted")
	assert.Equal(t, []Trend{{Description: "Food up", ChangePercentage: 12, Direction: "up"}}, r.Trends)
	assert.Equal(t, []BudgetAlert{{Category: "Travel", Message: "No limit set", Severity: "info"}}, r.BudgetAlerts)
	assert.Equal(t, []Insight{{Text: "Cook more"}, {Text: "Travel is flat"}}, r.Insights)
	assert.Equal(t, "You spent less than last week.", reply.Answer())
}

func TestParseReplyLenientFields(t *testing.T) {
	reply := ParseReply(json.RawMessage(`{"summary": 5, "total_spent": null, "trends": "rising", "chat_answer": "Mostly food."}`))
	require.NotNil(t, reply.Report)

	assert.Nil(t, reply.Report.Summary, "wrong type is treated as absent")
	assert.Nil(t, reply.Report.TotalSpent, "null is treated as absent")
	assert.Nil(t, reply.Report.Trends, "non-array list is treated as absent")
	assert.Equal(t, "Mostly food.", reply.Answer())
}

func TestParseReplyStringResult(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantReport bool
		wantText   string
		wantAnswer string
	}{
		{
			name:       "embedded JSON object",
			raw:        `"{\"chat_answer\": \"Food is your top category.\"}"`,
			wantReport: true,
			wantAnswer: "Food is your top category.",
		},
		{
			name:       "fenced JSON",
			raw:        "\"```json\\n{\\\"summary\\\": \\\"ok\\\"}\\n```\"",
			wantReport: true,
			wantAnswer: "ok",
		},
		{
			name:       "plain text",
			raw:        `"You spent $12 today."`,
			wantText:   "You spent $12 today.",
			wantAnswer: "You spent $12 today.",
		},
		{
			name:       "broken JSON kept as text",
			raw:        `"{not json"`,
			wantText:   "{not json",
			wantAnswer: "{not json",
		},
		{
			name:       "number",
			raw:        `42`,
			wantText:   "42",
			wantAnswer: "42",
		},
		{
			name:       "null",
			raw:        `null`,
			wantAnswer: DefaultAnswer,
		},
		{
			name:       "empty",
			raw:        ``,
			wantAnswer: DefaultAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := ParseReply(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantReport, reply.Report != nil)
			assert.Equal(t, tt.wantText, reply.Text)
			assert.Equal(t, tt.wantAnswer, reply.Answer())
		})
	}
}

func TestAnswerFallsBackToDefault(t *testing.T) {
	reply := ParseReply(json.RawMessage(`{"insights": ["a"]}`))
	require.NotNil(t, reply.Report)
	assert.Equal(t, DefaultAnswer, reply.Answer())
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without newline", "```", "```"},
		{"prose around", `Sure! {"a":1} Hope that helps.`, `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.in))
		})
	}
}
