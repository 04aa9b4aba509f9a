package app

import (
	"context"
	"strings"
	"time"

	"expensetrack/internal/agent"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
)

// Chat roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

type ChatMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Data      *agent.Report `json:"data,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ReportResult is the outcome of one report request.
type ReportResult struct {
	Window      core.Window `json:"window"`
	Reply       agent.Reply `json:"reply"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// GenerateReport asks the agent for a report over the rolling window of
// period. Only one report request runs at a time; others get ErrBusy.
func (a *App) GenerateReport(ctx context.Context, period core.Period) (ReportResult, error) {
	if err := period.Validate(); err != nil {
		return ReportResult{}, err
	}
	if a.agent == nil {
		return ReportResult{}, ErrNoAgent
	}
	if !a.reportBusy.TryAcquire(1) {
		a.metrics.BusyRejection(string(agent.SurfaceReport))
		return ReportResult{}, ErrBusy
	}
	defer a.reportBusy.Release(1)

	a.mu.Lock()
	snap := a.store.Snapshot()
	w, err := core.WindowFor(period, a.store.Today())
	a.mu.Unlock()
	if err != nil {
		return ReportResult{}, err
	}

	reply, err := a.send(ctx, agent.SurfaceReport, agent.BuildReportPrompt(snap, w))
	if err != nil {
		return ReportResult{}, err
	}

	res := ReportResult{Window: w, Reply: reply, GeneratedAt: a.now().UTC()}
	a.mu.Lock()
	a.lastReport = &res
	a.mu.Unlock()
	return res, nil
}

// LastReport returns the most recent successful report.
func (a *App) LastReport() (ReportResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastReport == nil {
		return ReportResult{}, false
	}
	return *a.lastReport, true
}

// Ask sends a chat question and appends both sides to the history. On
// failure the agent turn carries the user-facing error text and the error is
// returned as well.
func (a *App) Ask(ctx context.Context, question string) (ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ChatMessage{}, ErrEmptyQuestion
	}
	if a.agent == nil {
		return ChatMessage{}, ErrNoAgent
	}
	if !a.chatBusy.TryAcquire(1) {
		a.metrics.BusyRejection(string(agent.SurfaceChat))
		return ChatMessage{}, ErrBusy
	}
	defer a.chatBusy.Release(1)

	a.mu.Lock()
	a.chat = append(a.chat, ChatMessage{Role: RoleUser, Content: question, Timestamp: a.now().UTC()})
	prompt := agent.BuildChatPrompt(a.store.Snapshot(), question)
	a.mu.Unlock()

	reply, err := a.send(ctx, agent.SurfaceChat, prompt)

	msg := ChatMessage{Role: RoleAgent, Timestamp: a.now().UTC()}
	if err != nil {
		msg.Content = agent.UserMessage(err)
	} else {
		msg.Content = reply.Answer()
		msg.Data = reply.Report
	}

	a.mu.Lock()
	a.chat = append(a.chat, msg)
	a.mu.Unlock()
	return msg, err
}

// Chat returns a copy of the conversation so far.
func (a *App) Chat() []ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ChatMessage, len(a.chat))
	copy(out, a.chat)
	return out
}

// send performs exactly one agent call; there are no retries.
func (a *App) send(ctx context.Context, surface agent.Surface, prompt string) (agent.Reply, error) {
	if a.agentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.agentTimeout)
		defer cancel()
	}
	start := time.Now()
	res, sendErr := a.agent.Send(ctx, prompt, a.agentID)
	reply, err := agent.Interpret(res, sendErr, surface)
	a.metrics.AgentRequest(string(surface), time.Since(start), err)

	if err != nil {
		a.logger.WarnContext(ctx, "Agent request failed",
			applog.FieldOperation, string(surface),
			applog.FieldAgentID, a.agentID,
			"retryable", agent.IsRetryable(err),
			applog.FieldError, err)
		return agent.Reply{}, err
	}
	a.logger.InfoContext(ctx, "Agent request completed",
		applog.FieldOperation, string(surface),
		applog.FieldAgentID, a.agentID,
		"structured", reply.Report != nil)
	return reply, nil
}
