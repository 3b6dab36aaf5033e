package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mubeapp_server/middleware"
	"mubeapp_server/services"
)

// ChatController handles HTTP requests for direct conversations and
// messages.
type ChatController struct {
	Conversations *services.ConversationService
}

// NewChatController creates a new ChatController instance.
func NewChatController(conversations *services.ConversationService) *ChatController {
	return &ChatController{Conversations: conversations}
}

// HandleCreateConversation starts (or returns) the direct conversation with
// a target user.
func (cc *ChatController) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var request struct {
		TargetUserID string `json:"targetUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, services.NewInvalidArgument("invalid request payload"))
		return
	}
	if request.TargetUserID == "" {
		respondError(w, services.NewInvalidArgument("targetUserId is required"))
		return
	}

	conversationID, err := cc.Conversations.EnsureDirectConversation(r.Context(), middleware.UserID(r), request.TargetUserID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"conversationId": conversationID})
}

// HandleSendMessage appends a message to a conversation.
func (cc *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
		Text           string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, services.NewInvalidArgument("invalid request payload"))
		return
	}
	if request.ConversationID == "" {
		respondError(w, services.NewInvalidArgument("conversationId is required"))
		return
	}

	message, err := cc.Conversations.SendMessage(r.Context(), request.ConversationID, middleware.UserID(r), request.Text)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, message)
}

// HandleGetMessages lists a conversation's messages, newest first.
func (cc *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		respondError(w, services.NewInvalidArgument("conversationId is required"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, services.NewInvalidArgument("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	messages, err := cc.Conversations.Messages(r.Context(), conversationID, limit)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// HandleMarkRead marks a conversation as read for the caller.
func (cc *ChatController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, services.NewInvalidArgument("invalid request payload"))
		return
	}
	if request.ConversationID == "" {
		respondError(w, services.NewInvalidArgument("conversationId is required"))
		return
	}

	if err := cc.Conversations.MarkRead(r.Context(), request.ConversationID, middleware.UserID(r)); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Conversation marked as read"})
}
