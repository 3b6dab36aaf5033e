package services

import (
	"context"
	"log"

	"mubeapp_server/events"
	"mubeapp_server/models"
	"mubeapp_server/store"
	"mubeapp_server/utils"
)

// StatsService maintains the sent-like/dislike counters on user profiles.
// It consumes interaction-created events with at-least-once delivery, so it
// uses atomic increments and swallows its own failures: the counters are a
// display metric, never a control-flow input.
type StatsService struct {
	Store store.Store
}

// Register subscribes the aggregator to the event bus.
func (s *StatsService) Register(bus events.Bus) {
	bus.Subscribe(events.EventInteractionCreated, s.HandleInteractionCreated)
}

// HandleInteractionCreated increments the source user's counter for the
// interaction type.
func (s *StatsService) HandleInteractionCreated(evt events.Event) {
	sourceUserID := utils.ExtractString(evt.Payload, "sourceUserId")
	interactionType := utils.ExtractString(evt.Payload, "type")
	if sourceUserID == "" {
		log.Printf("⚠️ Stats event %s missing sourceUserId, skipping", evt.ID)
		return
	}

	field := "total_dislikes_sent"
	if interactionType == models.InteractionTypeLike {
		field = "total_likes_sent"
	}

	if err := s.Store.AtomicIncrement(context.Background(), models.UsersCollection, sourceUserID, field, 1); err != nil {
		log.Printf("⚠️ Failed to update %s for %s: %v", field, sourceUserID, err)
	}
}
