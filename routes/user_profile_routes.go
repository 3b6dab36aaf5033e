package routes

import (
	"mubeapp_server/controllers"
	"mubeapp_server/middleware"
	"mubeapp_server/services"

	"github.com/gorilla/mux"
)

// RegisterUserProfileRoutes sets up routes for profile operations under
// /api/profiles.
func RegisterUserProfileRoutes(r *mux.Router, profileService *services.UserProfileService) {
	controller := controllers.NewUserProfileController(profileService)

	profileRouter := r.PathPrefix("/api/profiles").Subrouter()
	profileRouter.Use(middleware.RequireUser)

	profileRouter.HandleFunc("", controller.HandleUpsertProfile).Methods("PUT")
	profileRouter.HandleFunc("/{userId}", controller.HandleGetProfile).Methods("GET")
}
