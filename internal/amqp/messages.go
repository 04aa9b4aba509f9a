package amqp

import (
	"encoding/json"
	"time"
)

// AgentRequestMessage is the RPC request body published to the agent exchange.
type AgentRequestMessage struct {
	Message   string    `json:"message"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAgentRequestMessage(message, agentID string) *AgentRequestMessage {
	return &AgentRequestMessage{
		Message:   message,
		AgentID:   agentID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AgentRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AgentRequestMessageFromJSON decodes a request body.
func AgentRequestMessageFromJSON(data []byte) (*AgentRequestMessage, error) {
	var msg AgentRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
