package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no agent identifier is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const reportInstructions = "You are a personal finance analyst. Reply with a single JSON object, " +
	"no Markdown, using any of these fields: report_type, summary, total_spent, " +
	"category_breakdown [{category,total,percentage,item_count,is_over_budget,budget_limit,budget_utilization}], " +
	"top_expenses [{category,amount,note,date}], trends [{description,change_percentage,direction}], " +
	"budget_alerts [{category,message,severity}], insights [{text}], chat_answer. " +
	"When the user asks a question, answer it in chat_answer."

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient talks to Gemini directly. The agent identifier is the model name.
type GeminiClient struct {
	models contentGenerator
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{models: client.Models}, nil
}

func (c *GeminiClient) Send(ctx context.Context, prompt, agentID string) (Result, error) {
	model := agentID
	if model == "" {
		model = DefaultGeminiModel
	}

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(reportInstructions+"\n\n"+prompt), nil)
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Result{Success: false, Error: "empty response from model"}, nil
	}

	raw, err := json.Marshal(text)
	if err != nil {
		return Result{}, fmt.Errorf("encode model text: %w", err)
	}
	return Result{
		Success:  true,
		Response: &Response{Status: StatusSuccess, Result: raw},
	}, nil
}
