package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"expensetrack/internal/amqp"
)

// Caller performs one request/reply exchange over a broker.
type Caller interface {
	Call(ctx context.Context, routingKey string, body []byte) ([]byte, error)
}

// AMQPClient routes prompts to the agent's queue; the agent identifier is the routing key.
type AMQPClient struct {
	caller     Caller
	routingKey string
}

// NewAMQPClient uses routingKey for every request, or the agent identifier when empty.
func NewAMQPClient(caller Caller, routingKey string) *AMQPClient {
	return &AMQPClient{caller: caller, routingKey: routingKey}
}

func (c *AMQPClient) Send(ctx context.Context, prompt, agentID string) (Result, error) {
	body, err := amqp.NewAgentRequestMessage(prompt, agentID).ToJSON()
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	key := c.routingKey
	if key == "" {
		key = agentID
	}

	reply, err := c.caller.Call(ctx, key, body)
	if err != nil {
		return Result{}, fmt.Errorf("agent call: %w", err)
	}

	var res Result
	if err := json.Unmarshal(reply, &res); err != nil {
		return Result{}, fmt.Errorf("decode reply: %w", err)
	}
	return res, nil
}
