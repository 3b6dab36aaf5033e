package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mubeapp_server/services"
)

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps service errors onto HTTP statuses. Anything that is not
// an AppError is logged and surfaced generically as an internal error.
func respondError(w http.ResponseWriter, err error) {
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		respondJSON(w, appErr.HTTPStatus(), map[string]string{
			"error": appErr.Message,
			"code":  string(appErr.Code),
		})
		return
	}

	log.Printf("❌ Internal error: %v", err)
	respondJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal error",
		"code":  string(services.CodeInternal),
	})
}
