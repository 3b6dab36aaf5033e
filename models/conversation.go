package models

import (
	"time"

	"mubeapp_server/utils"
)

// Conversation is jointly owned by its two participants. Its id is the same
// sorted pair key used for matches, which is what lets a re-match after an
// unmatch land back on the conversation that already holds the pair's
// message history.
type Conversation struct {
	Participants    []string             `json:"participants"`
	Type            string               `json:"type"`
	LastMessageText string               `json:"lastMessageText,omitempty"`
	LastMessageAt   time.Time            `json:"lastMessageAt,omitempty"`
	LastSenderID    string               `json:"lastSenderId,omitempty"`
	ReadUntil       map[string]time.Time `json:"readUntil,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID string) []string {
	var others []string
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// Document flattens the conversation for the store.
func (c *Conversation) Document() map[string]interface{} {
	readUntil := make(map[string]interface{}, len(c.ReadUntil))
	for uid, ts := range c.ReadUntil {
		readUntil[uid] = ts
	}
	doc := map[string]interface{}{
		"participants": c.Participants,
		"type":         c.Type,
		"readUntil":    readUntil,
		"createdAt":    c.CreatedAt,
		"updatedAt":    c.UpdatedAt,
	}
	if c.LastMessageText != "" {
		doc["lastMessageText"] = c.LastMessageText
	}
	if !c.LastMessageAt.IsZero() {
		doc["lastMessageAt"] = c.LastMessageAt
	}
	if c.LastSenderID != "" {
		doc["lastSenderId"] = c.LastSenderID
	}
	return doc
}

// ConversationFromDocument rebuilds a conversation from a store document.
func ConversationFromDocument(doc map[string]interface{}) *Conversation {
	conv := &Conversation{
		Participants:    utils.ExtractStringSlice(doc, "participants"),
		Type:            utils.ExtractString(doc, "type"),
		LastMessageText: utils.ExtractString(doc, "lastMessageText"),
		LastMessageAt:   utils.ExtractTime(doc, "lastMessageAt"),
		LastSenderID:    utils.ExtractString(doc, "lastSenderId"),
		CreatedAt:       utils.ExtractTime(doc, "createdAt"),
		UpdatedAt:       utils.ExtractTime(doc, "updatedAt"),
	}
	if raw, ok := doc["readUntil"].(map[string]interface{}); ok {
		conv.ReadUntil = make(map[string]time.Time, len(raw))
		for uid := range raw {
			conv.ReadUntil[uid] = utils.ExtractTime(raw, uid)
		}
	}
	return conv
}

// ConversationPreview is the per-participant denormalized summary used for
// list rendering. Created once alongside the conversation and never
// overwritten, so direct-contact history survives matching and vice versa.
type ConversationPreview struct {
	OtherUserID     string    `json:"otherUserId"`
	OtherUserName   string    `json:"otherUserName"`
	OtherUserPhoto  string    `json:"otherUserPhoto,omitempty"`
	LastMessageText string    `json:"lastMessageText,omitempty"`
	LastMessageAt   time.Time `json:"lastMessageAt,omitempty"`
	LastSenderID    string    `json:"lastSenderId,omitempty"`
	UnreadCount     int       `json:"unreadCount"`
	Type            string    `json:"type"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PreviewID keys a preview document by owner and conversation.
func PreviewID(ownerUserID, conversationID string) string {
	return ownerUserID + "#" + conversationID
}

// Document flattens the preview for the store.
func (p *ConversationPreview) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"otherUserId":   p.OtherUserID,
		"otherUserName": p.OtherUserName,
		"unreadCount":   p.UnreadCount,
		"type":          p.Type,
		"updatedAt":     p.UpdatedAt,
	}
	if p.OtherUserPhoto != "" {
		doc["otherUserPhoto"] = p.OtherUserPhoto
	}
	if p.LastMessageText != "" {
		doc["lastMessageText"] = p.LastMessageText
	}
	if !p.LastMessageAt.IsZero() {
		doc["lastMessageAt"] = p.LastMessageAt
	}
	if p.LastSenderID != "" {
		doc["lastSenderId"] = p.LastSenderID
	}
	return doc
}

// PreviewFromDocument rebuilds a preview from a store document.
func PreviewFromDocument(doc map[string]interface{}) *ConversationPreview {
	return &ConversationPreview{
		OtherUserID:     utils.ExtractString(doc, "otherUserId"),
		OtherUserName:   utils.ExtractString(doc, "otherUserName"),
		OtherUserPhoto:  utils.ExtractString(doc, "otherUserPhoto"),
		LastMessageText: utils.ExtractString(doc, "lastMessageText"),
		LastMessageAt:   utils.ExtractTime(doc, "lastMessageAt"),
		LastSenderID:    utils.ExtractString(doc, "lastSenderId"),
		UnreadCount:     utils.ExtractInt(doc, "unreadCount"),
		Type:            utils.ExtractString(doc, "type"),
		UpdatedAt:       utils.ExtractTime(doc, "updatedAt"),
	}
}
