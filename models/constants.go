package models

// Interaction types accepted by the Matchpoint engine.
const (
	InteractionTypeLike    = "like"
	InteractionTypeDislike = "dislike"
)

// Conversation types (created by matching vs. direct contact).
const (
	ConversationTypeMatchpoint = "matchpoint"
	ConversationTypeDirect     = "direct"
)

// Quota and retention settings.
const (
	DailySwipeLimit       = 50
	InteractionExpiryDays = 30
)

// Logical collection names used against the store.
const (
	UsersCollection         = "users"
	InteractionsCollection  = "interactions"
	MatchesCollection       = "matches"
	ConversationsCollection = "conversations"
	PreviewsCollection      = "conversationPreviews"
	MessagesCollection      = "messages"
)
