package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reflecta/reflecta/internal/logging"
	"github.com/reflecta/reflecta/internal/middleware"
	"github.com/reflecta/reflecta/internal/models"
	"github.com/reflecta/reflecta/internal/repositories"
	"github.com/reflecta/reflecta/internal/summary"
)

// streakHorizon bounds how far back the weekly endpoint reads to count a streak.
const streakHorizon = 120

// ReflectionHandler implements the reflection endpoints. Every route must sit
// behind middleware.RequireBearer.
type ReflectionHandler struct {
	Reflections ReflectionStore
	NowFunc     func() time.Time
	// Location is the calendar used to bucket reflections into days; UTC when nil.
	Location *time.Location
}

// Create handles POST /api/reflections.
func (h ReflectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createReflectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid reflection payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if !models.ValidMood(req.Mood) {
		respondMessage(ctx, w, http.StatusBadRequest, "Mood must be between 1 and 5.")
		return
	}
	if !models.ValidNote(req.Note) {
		respondMessage(ctx, w, http.StatusBadRequest, "Notes are limited to 500 characters.")
		return
	}

	reflection := models.Reflection{
		ID:        uuid.NewString(),
		Mood:      req.Mood,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: h.now(),
		UserID:    userID,
	}

	if err := h.Reflections.Create(ctx, reflection); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("reflection for deleted account", "userId", userID)
			respondMessage(ctx, w, http.StatusUnauthorized, middleware.SessionExpiredMessage)
			return
		}
		logger.Error("failed to store reflection", "error", err, "userId", userID)
		respondMessage(ctx, w, http.StatusInternalServerError, "Unable to save your reflection right now.")
		return
	}

	logger.Info("reflection created", "reflectionId", reflection.ID, "mood", reflection.Mood)
	respondJSON(ctx, w, http.StatusCreated, reflection)
}

// Weekly handles GET /api/reflections/weekly.
func (h ReflectionHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	now := h.now()
	since := summary.WindowStart(now, h.location(), streakHorizon)
	reflections, err := h.Reflections.ListSince(ctx, userID, since)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list reflections", "error", err, "userId", userID)
		respondMessage(ctx, w, http.StatusInternalServerError, "Failed to load weekly summary")
		return
	}

	respondJSON(ctx, w, http.StatusOK, summary.Weekly(reflections, now, h.location()))
}

// Insights handles GET /api/reflections/insights.
func (h ReflectionHandler) Insights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	now := h.now()
	since := summary.WindowStart(now, h.location(), summary.InsightsWindow)
	reflections, err := h.Reflections.ListSince(ctx, userID, since)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list reflections", "error", err, "userId", userID)
		respondMessage(ctx, w, http.StatusInternalServerError, "Failed to load insights")
		return
	}

	respondJSON(ctx, w, http.StatusOK, summary.Insights(reflections, now, h.location()))
}

type createReflectionRequest struct {
	Mood int    `json:"mood"`
	Note string `json:"note"`
}

func (h ReflectionHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondMessage(r.Context(), w, http.StatusUnauthorized, middleware.SessionExpiredMessage)
		return "", false
	}
	if h.Reflections == nil {
		logging.FromContext(r.Context()).Error("reflection store unavailable")
		respondMessage(r.Context(), w, http.StatusInternalServerError, "Reflections are temporarily unavailable.")
		return "", false
	}
	return userID, true
}

func (h ReflectionHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func (h ReflectionHandler) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.UTC
}
