package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mubeapp_server/events"
	"mubeapp_server/models"
	"mubeapp_server/store"
)

// InteractionService owns the interaction ledger: the single durable record
// per ordered (source, target) pair. Repeat actions update the record in
// place; a second document for the same pair can never appear because the
// document id is the pair itself.
type InteractionService struct {
	Store store.Store
	Bus   events.Bus
	Now   func() time.Time
}

// UpsertResult reports what the ledger did with an action.
type UpsertResult struct {
	Interaction *models.Interaction
	// Created is true when this was the pair's first interaction. Quota is
	// consumed and the creation event fires only in that case.
	Created bool
	// Unchanged is true for a like landing on an already-stored like: the
	// record is returned as-is so double-submits do no extra work.
	Unchanged bool
}

func (s *InteractionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the ledger record for the ordered pair, or nil when the pair
// has no interaction yet.
func (s *InteractionService) Get(ctx context.Context, sourceUserID, targetUserID string) (*models.Interaction, error) {
	doc, err := s.Store.Get(ctx, models.InteractionsCollection, models.InteractionID(sourceUserID, targetUserID))
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read interaction %s->%s: %w", sourceUserID, targetUserID, err)
	}
	return models.InteractionFromDocument(doc), nil
}

// Upsert records an action for the pair. First actions create the record and
// publish the creation event; later actions overwrite type and timestamps,
// set or clear the dislike expiry, and clear any stale match marker.
func (s *InteractionService) Upsert(ctx context.Context, sourceUserID, targetUserID, interactionType string) (*UpsertResult, error) {
	existing, err := s.Get(ctx, sourceUserID, targetUserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id := models.InteractionID(sourceUserID, targetUserID)

	if existing == nil {
		interaction := &models.Interaction{
			SourceUserID: sourceUserID,
			TargetUserID: targetUserID,
			Type:         interactionType,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if interactionType == models.InteractionTypeDislike {
			interaction.ExpiresAt = now.Add(models.InteractionExpiryDays * 24 * time.Hour)
		}
		if err := s.Store.Set(ctx, models.InteractionsCollection, id, interaction.Document(), false); err != nil {
			return nil, fmt.Errorf("failed to create interaction %s: %w", id, err)
		}
		s.publishCreated(interaction)
		return &UpsertResult{Interaction: interaction, Created: true}, nil
	}

	if existing.Type == models.InteractionTypeLike && interactionType == models.InteractionTypeLike {
		return &UpsertResult{Interaction: existing, Unchanged: true}, nil
	}

	fields := store.Document{
		"type":              interactionType,
		"updated_at":        now,
		"resulted_in_match": nil,
	}
	updated := &models.Interaction{
		SourceUserID: sourceUserID,
		TargetUserID: targetUserID,
		Type:         interactionType,
		CreatedAt:    existing.CreatedAt,
		UpdatedAt:    now,
	}
	if interactionType == models.InteractionTypeDislike {
		updated.ExpiresAt = now.Add(models.InteractionExpiryDays * 24 * time.Hour)
		fields["expires_at"] = updated.ExpiresAt
	} else {
		fields["expires_at"] = nil
	}

	if err := s.Store.Update(ctx, models.InteractionsCollection, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update interaction %s: %w", id, err)
	}
	return &UpsertResult{Interaction: updated}, nil
}

// MarkResultedInMatch flags both directions of a matched pair for
// audit/analytics. Callers treat failures as non-fatal.
func (s *InteractionService) MarkResultedInMatch(ctx context.Context, userA, userB string) error {
	now := s.now()
	fields := store.Document{"resulted_in_match": true, "updated_at": now}

	if err := s.Store.Update(ctx, models.InteractionsCollection, models.InteractionID(userA, userB), fields); err != nil {
		return fmt.Errorf("failed to mark %s->%s: %w", userA, userB, err)
	}
	if err := s.Store.Update(ctx, models.InteractionsCollection, models.InteractionID(userB, userA), fields); err != nil {
		return fmt.Errorf("failed to mark %s->%s: %w", userB, userA, err)
	}
	return nil
}

// SweepExpired deletes dislikes whose retention window has passed, in
// batches, and returns how many records were removed.
func (s *InteractionService) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	total := 0
	for {
		expired, err := s.Store.Query(ctx, models.InteractionsCollection, []store.Filter{
			{Field: "type", Op: "==", Value: models.InteractionTypeDislike},
			{Field: "expires_at", Op: "<=", Value: s.now()},
		}, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to query expired interactions: %w", err)
		}
		if len(expired) == 0 {
			return total, nil
		}

		for _, kd := range expired {
			if err := s.Store.Delete(ctx, models.InteractionsCollection, kd.ID); err != nil {
				return total, fmt.Errorf("failed to delete expired interaction %s: %w", kd.ID, err)
			}
			total++
		}

		if len(expired) < batchSize {
			return total, nil
		}
	}
}

func (s *InteractionService) publishCreated(interaction *models.Interaction) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(events.Event{
		Type: events.EventInteractionCreated,
		Payload: map[string]interface{}{
			"sourceUserId": interaction.SourceUserID,
			"targetUserId": interaction.TargetUserID,
			"type":         interaction.Type,
		},
	})
	log.Printf("📨 Interaction created: %s -> %s (%s)", interaction.SourceUserID, interaction.TargetUserID, interaction.Type)
}
