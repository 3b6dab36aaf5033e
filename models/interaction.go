package models

import (
	"time"

	"mubeapp_server/utils"
)

// Interaction is the durable record of a like/dislike from one user toward
// another. At most one interaction exists per ordered (source, target) pair;
// repeat actions overwrite type and timestamps instead of creating a second
// record. Dislikes carry an expiry and are reaped by the sweep; likes never
// expire.
type Interaction struct {
	SourceUserID    string    `json:"sourceUserId"`
	TargetUserID    string    `json:"targetUserId"`
	Type            string    `json:"type"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	ExpiresAt       time.Time `json:"expiresAt,omitempty"`
	ResultedInMatch bool      `json:"resultedInMatch,omitempty"`
}

// InteractionID is the document id for the ordered pair.
func InteractionID(sourceUserID, targetUserID string) string {
	return sourceUserID + "_" + targetUserID
}

// ID returns the interaction's document id.
func (i *Interaction) ID() string {
	return InteractionID(i.SourceUserID, i.TargetUserID)
}

// Document flattens the interaction for the store.
func (i *Interaction) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"source_user_id": i.SourceUserID,
		"target_user_id": i.TargetUserID,
		"type":           i.Type,
		"created_at":     i.CreatedAt,
		"updated_at":     i.UpdatedAt,
	}
	if !i.ExpiresAt.IsZero() {
		doc["expires_at"] = i.ExpiresAt
	}
	if i.ResultedInMatch {
		doc["resulted_in_match"] = true
	}
	return doc
}

// InteractionFromDocument rebuilds an interaction from a store document.
func InteractionFromDocument(doc map[string]interface{}) *Interaction {
	return &Interaction{
		SourceUserID:    utils.ExtractString(doc, "source_user_id"),
		TargetUserID:    utils.ExtractString(doc, "target_user_id"),
		Type:            utils.ExtractString(doc, "type"),
		CreatedAt:       utils.ExtractTime(doc, "created_at"),
		UpdatedAt:       utils.ExtractTime(doc, "updated_at"),
		ExpiresAt:       utils.ExtractTime(doc, "expires_at"),
		ResultedInMatch: utils.ExtractBool(doc, "resulted_in_match"),
	}
}
