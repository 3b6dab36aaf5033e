package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"mubeapp_server/models"
	"mubeapp_server/store"

	"github.com/google/uuid"
)

// ConversationService handles direct-contact conversations and messaging.
// Conversation identity is the same sorted pair key the matcher uses, so a
// direct contact and a later match land on one shared conversation, and an
// unmatch never orphans message history.
type ConversationService struct {
	Store store.Store
	Now   func() time.Time
}

func (s *ConversationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnsureDirectConversation creates (or returns) the conversation between two
// users outside the matching flow, with both previews. Existing documents
// are reused untouched.
func (s *ConversationService) EnsureDirectConversation(ctx context.Context, userA, userB string) (string, error) {
	if userA == userB {
		return "", NewInvalidArgument("cannot start a conversation with yourself")
	}
	conversationID := models.PairKey(userA, userB)

	err := s.Store.RunTransaction(ctx, func(tx store.Txn) error {
		_, err := tx.Get(models.ConversationsCollection, conversationID)
		if err == nil {
			return nil
		}
		if err != store.ErrNotFound {
			return fmt.Errorf("failed to read conversation %s: %w", conversationID, err)
		}

		now := s.now()
		conversation := &models.Conversation{
			Participants: []string{userA, userB},
			Type:         models.ConversationTypeDirect,
			ReadUntil: map[string]time.Time{
				userA: time.UnixMilli(0).UTC(),
				userB: time.UnixMilli(0).UTC(),
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		tx.Set(models.ConversationsCollection, conversationID, conversation.Document())

		s.ensurePreviewInTxn(tx, userA, userB, conversationID, now)
		s.ensurePreviewInTxn(tx, userB, userA, conversationID, now)
		return nil
	})
	if err != nil {
		return "", err
	}
	return conversationID, nil
}

// SendMessage appends a message and updates the conversation's last-message
// metadata plus the other participants' previews.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	if text == "" {
		return nil, NewInvalidArgument("message text is required")
	}

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, NewInvalidArgument("sender is not a participant of this conversation")
	}

	now := s.now()
	message := &models.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      now,
	}
	if err := s.Store.Set(ctx, models.MessagesCollection, message.MessageID, message.Document(), false); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if err := s.Store.Update(ctx, models.ConversationsCollection, conversationID, store.Document{
		"lastMessageText": text,
		"lastMessageAt":   now,
		"lastSenderId":    senderID,
		"updatedAt":       now,
	}); err != nil {
		return nil, fmt.Errorf("failed to update conversation %s: %w", conversationID, err)
	}

	// Preview fan-out is best-effort denormalization; the message itself is
	// already durable.
	lastMessage := store.Document{
		"lastMessageText": text,
		"lastMessageAt":   now,
		"lastSenderId":    senderID,
		"updatedAt":       now,
	}
	for _, other := range conversation.OtherParticipants(senderID) {
		previewID := models.PreviewID(other, conversationID)
		if err := s.Store.Set(ctx, models.PreviewsCollection, previewID, lastMessage, true); err != nil {
			log.Printf("⚠️ Failed to update preview %s: %v", previewID, err)
			continue
		}
		if err := s.Store.AtomicIncrement(ctx, models.PreviewsCollection, previewID, "unreadCount", 1); err != nil {
			log.Printf("⚠️ Failed to bump unread count on %s: %v", previewID, err)
		}
	}
	if err := s.Store.Set(ctx, models.PreviewsCollection, models.PreviewID(senderID, conversationID), lastMessage, true); err != nil {
		log.Printf("⚠️ Failed to update sender preview: %v", err)
	}

	return message, nil
}

// Messages returns up to limit messages of a conversation, newest first.
func (s *ConversationService) Messages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	if _, err := s.getConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	results, err := s.Store.Query(ctx, models.MessagesCollection, []store.Filter{
		{Field: "conversation_id", Op: "==", Value: conversationID},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	messages := make([]*models.Message, 0, len(results))
	for _, kd := range results {
		messages = append(messages, models.MessageFromDocument(kd.Doc))
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// MarkRead zeroes the caller's unread counter and advances their read
// marker on the conversation.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return NewInvalidArgument("user is not a participant of this conversation")
	}

	now := s.now()
	readUntil := make(map[string]interface{}, len(conversation.ReadUntil)+1)
	for uid, ts := range conversation.ReadUntil {
		readUntil[uid] = ts
	}
	readUntil[userID] = now
	if err := s.Store.Update(ctx, models.ConversationsCollection, conversationID, store.Document{
		"readUntil": readUntil,
	}); err != nil {
		return fmt.Errorf("failed to update read marker: %w", err)
	}

	previewID := models.PreviewID(userID, conversationID)
	if err := s.Store.Set(ctx, models.PreviewsCollection, previewID, store.Document{
		"unreadCount": 0,
		"updatedAt":   now,
	}, true); err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

func (s *ConversationService) getConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	doc, err := s.Store.Get(ctx, models.ConversationsCollection, conversationID)
	if err == store.ErrNotFound {
		return nil, NewNotFound("conversation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation %s: %w", conversationID, err)
	}
	return models.ConversationFromDocument(doc), nil
}

func (s *ConversationService) ensurePreviewInTxn(tx store.Txn, ownerID, otherID, conversationID string, now time.Time) {
	previewID := models.PreviewID(ownerID, conversationID)
	if _, err := tx.Get(models.PreviewsCollection, previewID); err == nil {
		return
	}

	other := &models.UserProfile{UserID: otherID}
	if doc, err := tx.Get(models.UsersCollection, otherID); err == nil {
		other = models.UserProfileFromDocument(otherID, doc)
	}

	preview := &models.ConversationPreview{
		OtherUserID:    otherID,
		OtherUserName:  other.DisplayName(),
		OtherUserPhoto: other.Photo,
		UnreadCount:    0,
		Type:           models.ConversationTypeDirect,
		UpdatedAt:      now,
	}
	tx.Set(models.PreviewsCollection, previewID, preview.Document())
}
