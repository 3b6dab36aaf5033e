package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mubeapp_server/models"
	"mubeapp_server/store"
)

// MatchpointService orchestrates one submitted action end to end: quota for
// new pairs, the ledger upsert, mutual-like evaluation, and unmatching on
// dislike. Every write underneath is idempotent, so a timed-out request can
// be retried safely.
type MatchpointService struct {
	Store   store.Store
	Quota   *QuotaService
	Ledger  *InteractionService
	Matches *MatchService
	Now     func() time.Time
}

// ActionResult is the response payload for a submitted action.
type ActionResult struct {
	IsMatch        bool   `json:"isMatch"`
	MatchID        string `json:"matchId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	RemainingQuota int    `json:"remainingQuota"`
	Message        string `json:"message"`
}

// SubmitAction processes a like or dislike from callerID toward
// targetUserID.
func (s *MatchpointService) SubmitAction(ctx context.Context, callerID, targetUserID, action string) (*ActionResult, error) {
	if callerID == "" {
		return nil, NewUnauthenticated("caller identity required")
	}
	if targetUserID == "" {
		return nil, NewInvalidArgument("targetUserId is required")
	}
	if action != models.InteractionTypeLike && action != models.InteractionTypeDislike {
		return nil, NewInvalidArgument("action must be 'like' or 'dislike'")
	}
	if callerID == targetUserID {
		return nil, NewInvalidArgument("cannot interact with yourself")
	}

	profileDoc, err := s.Store.Get(ctx, models.UsersCollection, callerID)
	if err == store.ErrNotFound {
		return nil, NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read caller profile: %w", err)
	}

	remaining := s.Quota.Snapshot(profileDoc)

	existing, err := s.Ledger.Get(ctx, callerID, targetUserID)
	if err != nil {
		return nil, err
	}

	// Quota is charged only for the pair's first interaction; repeat
	// actions on a known pair are free.
	if existing == nil {
		remaining, err = s.Quota.Consume(ctx, callerID)
		if err != nil {
			return nil, err
		}
	}

	if action == models.InteractionTypeDislike {
		return s.submitDislike(ctx, callerID, targetUserID, remaining)
	}
	return s.submitLike(ctx, callerID, targetUserID, remaining)
}

func (s *MatchpointService) submitDislike(ctx context.Context, callerID, targetUserID string, remaining int) (*ActionResult, error) {
	if _, err := s.Ledger.Upsert(ctx, callerID, targetUserID, models.InteractionTypeDislike); err != nil {
		return nil, err
	}

	removed, err := s.Matches.RemoveMatch(ctx, callerID, targetUserID)
	if err != nil {
		return nil, err
	}

	message := "Dislike recorded"
	if removed {
		message = "Match removed"
	}
	return &ActionResult{RemainingQuota: remaining, Message: message}, nil
}

func (s *MatchpointService) submitLike(ctx context.Context, callerID, targetUserID string, remaining int) (*ActionResult, error) {
	result, err := s.Ledger.Upsert(ctx, callerID, targetUserID, models.InteractionTypeLike)
	if err != nil {
		return nil, err
	}

	if result.Unchanged {
		return &ActionResult{RemainingQuota: remaining, Message: "Interaction already recorded"}, nil
	}

	matchResult, err := s.Matches.EvaluateAndMatch(ctx, callerID, targetUserID)
	if err != nil {
		return nil, err
	}

	if !matchResult.IsMatch {
		return &ActionResult{RemainingQuota: remaining, Message: "Like recorded"}, nil
	}

	// Audit marker on both ledger directions; the match already committed,
	// so a failure here must not fail the request.
	if err := s.Ledger.MarkResultedInMatch(ctx, callerID, targetUserID); err != nil {
		log.Printf("⚠️ Failed to mark interactions for match %s: %v", matchResult.MatchID, err)
	}

	return &ActionResult{
		IsMatch:        true,
		MatchID:        matchResult.MatchID,
		ConversationID: matchResult.ConversationID,
		RemainingQuota: remaining,
		Message:        "It's a match! You can talk now",
	}, nil
}

// RemainingQuota returns the caller's quota status without consuming any.
func (s *MatchpointService) RemainingQuota(ctx context.Context, callerID string) (*QuotaStatus, error) {
	if callerID == "" {
		return nil, NewUnauthenticated("caller identity required")
	}
	return s.Quota.Remaining(ctx, callerID)
}
