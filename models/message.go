package models

import (
	"time"

	"mubeapp_server/utils"
)

// Message is a single chat message inside a conversation.
type Message struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Document flattens the message for the store.
func (m *Message) Document() map[string]interface{} {
	return map[string]interface{}{
		"message_id":      m.MessageID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"text":            m.Text,
		"created_at":      m.CreatedAt,
	}
}

// MessageFromDocument rebuilds a message from a store document.
func MessageFromDocument(doc map[string]interface{}) *Message {
	return &Message{
		MessageID:      utils.ExtractString(doc, "message_id"),
		ConversationID: utils.ExtractString(doc, "conversation_id"),
		SenderID:       utils.ExtractString(doc, "sender_id"),
		Text:           utils.ExtractString(doc, "text"),
		CreatedAt:      utils.ExtractTime(doc, "created_at"),
	}
}
