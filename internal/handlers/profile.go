package handlers

import (
	"errors"
	"net/http"

	"transitwatch/internal/middleware"
	"transitwatch/internal/models"
	"transitwatch/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ProfileHandler handles profile document HTTP requests
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// PushTokenRequest is the body of PUT /api/v1/push-token
type PushTokenRequest struct {
	Token    string              `json:"token"`
	Platform models.PushPlatform `json:"platform"`
}

// GetProfile handles GET /api/v1/profiles/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.profileService.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("user_id", id).Msg("Failed to get profile")
		respondError(w, "Failed to get profile", http.StatusInternalServerError)
		return
	}

	respondJSON(w, user, http.StatusOK)
}

// PutProfile handles PUT /api/v1/profiles/{id}
func (h *ProfileHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var user models.User
	if err := decodeJSON(r, &user); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user.ID = chi.URLParam(r, "id")

	if err := h.profileService.PutProfile(ctx, userID, &user); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			respondError(w, err.Error(), http.StatusForbidden)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to put profile")
		respondError(w, "Failed to save profile", http.StatusInternalServerError)
		return
	}

	respondJSON(w, user, http.StatusOK)
}

// DeleteProfile handles DELETE /api/v1/profiles/{id}
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if chi.URLParam(r, "id") != userID {
		respondError(w, services.ErrForbidden.Error(), http.StatusForbidden)
		return
	}

	if err := h.profileService.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, services.ErrNotImplemented) {
			respondError(w, "Account deletion is not available", http.StatusNotImplemented)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete account")
		respondError(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegisterPushToken handles PUT /api/v1/push-token
func (h *ProfileHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		respondError(w, "token is required", http.StatusBadRequest)
		return
	}

	if err := h.profileService.RegisterPushToken(ctx, userID, req.Token, req.Platform); err != nil {
		if errors.Is(err, services.ErrInvalidPlatform) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register push token")
		respondError(w, "Failed to register push token", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("platform", string(req.Platform)).
		Msg("Push token registered")

	w.WriteHeader(http.StatusNoContent)
}
