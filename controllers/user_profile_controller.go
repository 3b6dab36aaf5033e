package controllers

import (
	"encoding/json"
	"net/http"

	"mubeapp_server/middleware"
	"mubeapp_server/models"
	"mubeapp_server/services"

	"github.com/gorilla/mux"
)

// UserProfileController handles HTTP requests for user profiles.
type UserProfileController struct {
	Profiles *services.UserProfileService
}

// NewUserProfileController creates a new UserProfileController instance.
func NewUserProfileController(profiles *services.UserProfileService) *UserProfileController {
	return &UserProfileController{Profiles: profiles}
}

// HandleUpsertProfile creates or updates the caller's profile.
func (pc *UserProfileController) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, services.NewInvalidArgument("invalid request payload"))
		return
	}

	if err := pc.Profiles.UpsertProfile(r.Context(), middleware.UserID(r), &profile); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Profile saved"})
}

// HandleGetProfile returns a profile by user id.
func (pc *UserProfileController) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respondError(w, services.NewInvalidArgument("userId is required"))
		return
	}

	profile, err := pc.Profiles.GetProfile(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
