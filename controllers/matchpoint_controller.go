package controllers

import (
	"encoding/json"
	"net/http"

	"mubeapp_server/middleware"
	"mubeapp_server/services"
)

// MatchpointController handles HTTP requests for like/dislike actions and
// the daily quota.
type MatchpointController struct {
	Matchpoint *services.MatchpointService
}

// NewMatchpointController creates a new MatchpointController instance.
func NewMatchpointController(matchpoint *services.MatchpointService) *MatchpointController {
	return &MatchpointController{Matchpoint: matchpoint}
}

// HandleSubmitAction processes a like or dislike toward a target user.
func (mc *MatchpointController) HandleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var request struct {
		TargetUserID string `json:"targetUserId"`
		Action       string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, services.NewInvalidArgument("invalid request payload"))
		return
	}

	result, err := mc.Matchpoint.SubmitAction(r.Context(), middleware.UserID(r), request.TargetUserID, request.Action)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleRemainingQuota returns the caller's quota without consuming any.
func (mc *MatchpointController) HandleRemainingQuota(w http.ResponseWriter, r *http.Request) {
	status, err := mc.Matchpoint.RemainingQuota(r.Context(), middleware.UserID(r))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
