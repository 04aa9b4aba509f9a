package agent

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseReply decodes the result field of a successful response. It never
// fails: a string result is parsed as JSON when possible and kept as text
// otherwise, and every report field that is missing or has the wrong shape
// is left empty.
func ParseReply(raw json.RawMessage) Reply {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Reply{}
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Reply{Text: string(raw)}
		}
		cleaned := cleanModelJSON(s)
		if strings.HasPrefix(cleaned, "{") {
			if r, ok := parseReport([]byte(cleaned)); ok {
				return Reply{Report: r}
			}
		}
		return Reply{Text: s}
	}

	if raw[0] == '{' {
		if r, ok := parseReport(raw); ok {
			return Reply{Report: r}
		}
	}
	return Reply{Text: string(raw)}
}

// cleanModelJSON strips Markdown code fences and any prose around the
// outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = strings.TrimSpace(s[:end])
		}
	}

	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

type object map[string]json.RawMessage

func parseReport(data []byte) (*Report, bool) {
	var o object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, false
	}
	return &Report{
		ReportType:        o.optString("report_type"),
		Summary:           o.optString("summary"),
		TotalSpent:        o.optNumber("total_spent"),
		ChatAnswer:        o.optString("chat_answer"),
		CategoryBreakdown: list(o["category_breakdown"], categoryBreakdown),
		TopExpenses:       list(o["top_expenses"], topExpense),
		Trends:            list(o["trends"], trend),
		BudgetAlerts:      list(o["budget_alerts"], budgetAlert),
		Insights:          list(o["insights"], insight),
	}, true
}

// list decodes a JSON array element by element. A missing or non-array
// value yields nil; elements the decoder rejects are skipped.
func list[T any](raw json.RawMessage, decode func(json.RawMessage) (T, bool)) []T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if v, ok := decode(item); ok {
			out = append(out, v)
		}
	}
	return out
}

func asObject(raw json.RawMessage) (object, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false
	}
	return o, true
}

func categoryBreakdown(raw json.RawMessage) (CategoryBreakdown, bool) {
	o, ok := asObject(raw)
	if !ok {
		return CategoryBreakdown{}, false
	}
	return CategoryBreakdown{
		Category:          o.str("category"),
		Total:             o.num("total"),
		Percentage:        o.num("percentage"),
		ItemCount:         int(o.num("item_count")),
		IsOverBudget:      o.boolean("is_over_budget"),
		BudgetLimit:       o.num("budget_limit"),
		BudgetUtilization: o.num("budget_utilization"),
	}, true
}

func topExpense(raw json.RawMessage) (TopExpense, bool) {
	o, ok := asObject(raw)
	if !ok {
		return TopExpense{}, false
	}
	return TopExpense{
		Category: o.str("category"),
		Amount:   o.num("amount"),
		Note:     o.str("note"),
		Date:     o.str("date"),
	}, true
}

func trend(raw json.RawMessage) (Trend, bool) {
	o, ok := asObject(raw)
	if !ok {
		return Trend{}, false
	}
	return Trend{
		Description:      o.str("description"),
		ChangePercentage: o.num("change_percentage"),
		Direction:        o.str("direction"),
	}, true
}

func budgetAlert(raw json.RawMessage) (BudgetAlert, bool) {
	o, ok := asObject(raw)
	if !ok {
		return BudgetAlert{}, false
	}
	return BudgetAlert{
		Category: o.str("category"),
		Message:  o.str("message"),
		Severity: o.str("severity"),
	}, true
}

// insight accepts {"text": "..."} objects and bare strings.
func insight(raw json.RawMessage) (Insight, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Insight{Text: s}, s != ""
	}
	o, ok := asObject(raw)
	if !ok {
		return Insight{}, false
	}
	text := o.str("text")
	return Insight{Text: text}, text != ""
}

// value returns the raw field, or nil when it is missing or null.
func (o object) value(key string) json.RawMessage {
	raw := bytes.TrimSpace(o[key])
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func (o object) optString(key string) *string {
	raw := o.value(key)
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func (o object) str(key string) string {
	if s := o.optString(key); s != nil {
		return *s
	}
	return ""
}

// optNumber accepts JSON numbers and numeric strings.
func (o object) optNumber(key string) *float64 {
	raw := o.value(key)
	if raw == nil {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func (o object) num(key string) float64 {
	if f := o.optNumber(key); f != nil {
		return *f
	}
	return 0
}

func (o object) boolean(key string) bool {
	var v bool
	_ = json.Unmarshal(o[key], &v)
	return v
}
