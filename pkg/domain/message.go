package domain

import "github.com/google/uuid"

// Message is dispatched from a realized node towards the root until a handler consumes it.
type Message struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Param string `json:"param,omitempty"`
	// Title is the context title of the node that raised the message.
	Title   string            `json:"title,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(msgType, param string) *Message {
	return &Message{
		ID:    uuid.NewString(),
		Type:  msgType,
		Param: param,
	}
}
