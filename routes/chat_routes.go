package routes

import (
	"mubeapp_server/controllers"
	"mubeapp_server/middleware"
	"mubeapp_server/services"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for conversations and messages under
// /api/chat.
func RegisterChatRoutes(r *mux.Router, conversationService *services.ConversationService) {
	controller := controllers.NewChatController(conversationService)

	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.Use(middleware.RequireUser)

	chatRouter.HandleFunc("/conversation", controller.HandleCreateConversation).Methods("POST")
	chatRouter.HandleFunc("/message", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/markRead", controller.HandleMarkRead).Methods("POST")
}
