package models

import (
	"sort"
	"time"

	"mubeapp_server/utils"
)

// Match records a mutual like between two users. It is keyed by the sorted
// pair of user ids so both directions of lookup resolve to the same document.
type Match struct {
	UserID1        string    `json:"userId1"`
	UserID2        string    `json:"userId2"`
	PairKey        string    `json:"pairKey"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PairKey builds the order-independent key for two user ids.
func PairKey(userID1, userID2 string) string {
	ids := []string{userID1, userID2}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}

// MatchID is the deterministic match document id for a pair key.
func MatchID(pairKey string) string {
	return "match_" + pairKey
}

// Document flattens the match for the store.
func (m *Match) Document() map[string]interface{} {
	return map[string]interface{}{
		"user_id_1":       m.UserID1,
		"user_id_2":       m.UserID2,
		"user_ids":        []string{m.UserID1, m.UserID2},
		"pair_key":        m.PairKey,
		"conversation_id": m.ConversationID,
		"created_at":      m.CreatedAt,
		"updated_at":      m.UpdatedAt,
	}
}

// MatchFromDocument rebuilds a match from a store document.
func MatchFromDocument(doc map[string]interface{}) *Match {
	return &Match{
		UserID1:        utils.ExtractString(doc, "user_id_1"),
		UserID2:        utils.ExtractString(doc, "user_id_2"),
		PairKey:        utils.ExtractString(doc, "pair_key"),
		ConversationID: utils.ExtractString(doc, "conversation_id"),
		CreatedAt:      utils.ExtractTime(doc, "created_at"),
		UpdatedAt:      utils.ExtractTime(doc, "updated_at"),
	}
}
