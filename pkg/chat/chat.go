package chat

import (
	"fmt"
	"strings"
)

const (
	ChatRoleUser  = "user"  // Player
	ChatRoleModel = "model" // Oracle
)

// ChatMessage is one entry of the oracle side log.
type ChatMessage struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// OracleRequest is a question put to the oracle through the API.
type OracleRequest struct {
	Question string `json:"question"`
}

// OracleResponse returns the oracle's reply along with the full log.
type OracleResponse struct {
	Reply       string        `json:"reply"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

func (r *OracleRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// UserMessage builds a player entry.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Text: text}
}

// ModelMessage builds an oracle entry.
func ModelMessage(text string) ChatMessage {
	return ChatMessage{Role: ChatRoleModel, Text: text}
}

// Transcript renders the log as "role: text" lines.
func Transcript(msgs []ChatMessage) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Text)
	}
	return sb.String()
}
