package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mubeapp_server/models"
	"mubeapp_server/store"
	"mubeapp_server/utils"
)

// MatchService detects mutual likes and creates or removes matches. Match
// creation runs as a single optimistic transaction keyed on the
// deterministic match id, so two users completing a mutual like at the same
// moment converge on exactly one match document.
type MatchService struct {
	Store store.Store
	Now   func() time.Time
}

// MatchResult is the outcome of evaluating a like for reciprocity.
type MatchResult struct {
	IsMatch        bool
	MatchID        string
	ConversationID string
}

func (s *MatchService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EvaluateAndMatch checks the reciprocal ledger entry after a like userA ->
// userB was durably recorded and creates the match when userB already likes
// userA back.
func (s *MatchService) EvaluateAndMatch(ctx context.Context, userA, userB string) (*MatchResult, error) {
	doc, err := s.Store.Get(ctx, models.InteractionsCollection, models.InteractionID(userB, userA))
	if err == store.ErrNotFound {
		return &MatchResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reciprocal interaction: %w", err)
	}

	reciprocal := models.InteractionFromDocument(doc)
	if reciprocal.Type != models.InteractionTypeLike {
		return &MatchResult{}, nil
	}

	matchID, conversationID, err := s.CreateMatch(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	log.Printf("🎉 Match: %s and %s (conversation %s)", userA, userB, conversationID)
	return &MatchResult{IsMatch: true, MatchID: matchID, ConversationID: conversationID}, nil
}

// CreateMatch transactionally creates the match document plus the
// conversation and both previews. It is idempotent: an existing match short-
// circuits with its stored conversation id, an existing conversation is
// reused (so a re-match keeps prior message history), and existing previews
// are never overwritten.
func (s *MatchService) CreateMatch(ctx context.Context, userA, userB string) (matchID, conversationID string, err error) {
	pairKey := models.PairKey(userA, userB)
	matchID = models.MatchID(pairKey)
	conversationID = pairKey

	err = s.Store.RunTransaction(ctx, func(tx store.Txn) error {
		existing, err := tx.Get(models.MatchesCollection, matchID)
		if err == nil {
			conversationID = utils.ExtractString(existing, "conversation_id")
			return nil
		}
		if err != store.ErrNotFound {
			return fmt.Errorf("failed to read match %s: %w", matchID, err)
		}

		now := s.now()

		_, convErr := tx.Get(models.ConversationsCollection, conversationID)
		if convErr != nil && convErr != store.ErrNotFound {
			return fmt.Errorf("failed to read conversation %s: %w", conversationID, convErr)
		}

		profileA := s.profileInTxn(tx, userA)
		profileB := s.profileInTxn(tx, userB)

		if convErr == store.ErrNotFound {
			conversation := &models.Conversation{
				Participants: []string{userA, userB},
				Type:         models.ConversationTypeMatchpoint,
				ReadUntil: map[string]time.Time{
					userA: time.UnixMilli(0).UTC(),
					userB: time.UnixMilli(0).UTC(),
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			tx.Set(models.ConversationsCollection, conversationID, conversation.Document())
		}

		s.ensurePreviewInTxn(tx, userA, conversationID, profileB, now)
		s.ensurePreviewInTxn(tx, userB, conversationID, profileA, now)

		match := &models.Match{
			UserID1:        userA,
			UserID2:        userB,
			PairKey:        pairKey,
			ConversationID: conversationID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		tx.Set(models.MatchesCollection, matchID, match.Document())
		return nil
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create match for %s: %w", pairKey, err)
	}
	return matchID, conversationID, nil
}

// RemoveMatch deletes the pair's match if one exists and reports whether it
// did. The conversation and its previews are left alone: message history
// survives an unmatch.
func (s *MatchService) RemoveMatch(ctx context.Context, userA, userB string) (bool, error) {
	matchID := models.MatchID(models.PairKey(userA, userB))

	_, err := s.Store.Get(ctx, models.MatchesCollection, matchID)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read match %s: %w", matchID, err)
	}

	if err := s.Store.Delete(ctx, models.MatchesCollection, matchID); err != nil {
		return false, fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	log.Printf("💔 Match removed: %s", matchID)
	return true, nil
}

// profileInTxn reads a participant profile for preview denormalization. A
// missing profile degrades to placeholder display data rather than failing
// the match.
func (s *MatchService) profileInTxn(tx store.Txn, userID string) *models.UserProfile {
	doc, err := tx.Get(models.UsersCollection, userID)
	if err != nil {
		return &models.UserProfile{UserID: userID}
	}
	return models.UserProfileFromDocument(userID, doc)
}

// ensurePreviewInTxn creates the owner's preview unless one already exists.
// An existing preview (from prior direct contact) is preserved untouched.
func (s *MatchService) ensurePreviewInTxn(tx store.Txn, ownerID, conversationID string, other *models.UserProfile, now time.Time) {
	previewID := models.PreviewID(ownerID, conversationID)
	if _, err := tx.Get(models.PreviewsCollection, previewID); err == nil {
		return
	}

	preview := &models.ConversationPreview{
		OtherUserID:    other.UserID,
		OtherUserName:  other.DisplayName(),
		OtherUserPhoto: other.Photo,
		UnreadCount:    0,
		Type:           models.ConversationTypeMatchpoint,
		UpdatedAt:      now,
	}
	tx.Set(models.PreviewsCollection, previewID, preview.Document())
}
