package services

import (
	"testing"

	"mubeapp_server/events"
	"mubeapp_server/models"
	"mubeapp_server/utils"
)

func interactionEvent(source, interactionType string) events.Event {
	return events.Event{
		ID:   "evt-1",
		Type: events.EventInteractionCreated,
		Payload: map[string]interface{}{
			"sourceUserId": source,
			"targetUserId": "someone",
			"type":         interactionType,
		},
	}
}

func TestStats_CountsByType(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")

	env.stats.HandleInteractionCreated(interactionEvent("alice", models.InteractionTypeLike))
	env.stats.HandleInteractionCreated(interactionEvent("alice", models.InteractionTypeDislike))
	env.stats.HandleInteractionCreated(interactionEvent("alice", models.InteractionTypeDislike))

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "total_likes_sent") != 1 {
		t.Errorf("expected 1 like sent, got %v", doc["total_likes_sent"])
	}
	if utils.ExtractInt(doc, "total_dislikes_sent") != 2 {
		t.Errorf("expected 2 dislikes sent, got %v", doc["total_dislikes_sent"])
	}
}

func TestStats_DuplicateDeliveryTolerated(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")

	// At-least-once delivery: the same event may arrive twice. The counter
	// drifts but nothing breaks, which is the accepted trade-off for a
	// display-only metric.
	evt := interactionEvent("alice", models.InteractionTypeLike)
	env.stats.HandleInteractionCreated(evt)
	env.stats.HandleInteractionCreated(evt)

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "total_likes_sent") != 2 {
		t.Errorf("expected 2 after duplicate delivery, got %v", doc["total_likes_sent"])
	}
}

func TestStats_MissingSourceIgnored(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "alice", "Alice")

	env.stats.HandleInteractionCreated(events.Event{
		Type:    events.EventInteractionCreated,
		Payload: map[string]interface{}{"type": models.InteractionTypeLike},
	})

	doc := env.userDoc(t, "alice")
	if utils.ExtractInt(doc, "total_likes_sent") != 0 {
		t.Errorf("malformed event must not count, got %v", doc["total_likes_sent"])
	}
}
