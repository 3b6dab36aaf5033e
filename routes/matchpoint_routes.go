package routes

import (
	"mubeapp_server/controllers"
	"mubeapp_server/middleware"
	"mubeapp_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchpointRoutes sets up routes for like/dislike actions under
// /api/matchpoint.
func RegisterMatchpointRoutes(r *mux.Router, matchpointService *services.MatchpointService) {
	controller := controllers.NewMatchpointController(matchpointService)

	matchpointRouter := r.PathPrefix("/api/matchpoint").Subrouter()
	matchpointRouter.Use(middleware.RequireUser)

	matchpointRouter.HandleFunc("/action", controller.HandleSubmitAction).Methods("POST")
	matchpointRouter.HandleFunc("/quota", controller.HandleRemainingQuota).Methods("GET")
}
