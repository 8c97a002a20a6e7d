// Package api exposes HTTP handlers for the social service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"example.com/fitsocial/internal/domain"
	"example.com/fitsocial/internal/persistence"
	"example.com/fitsocial/internal/service"
	"example.com/fitsocial/pkg/platform/auth"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// Handler coordinates HTTP requests with the social service. The caller's
// identity always comes from the bearer token subject.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: svc, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /v1/following/{id}", h.follow)
	mux.HandleFunc("DELETE /v1/following/{id}", h.unfollow)
	mux.HandleFunc("GET /v1/following/{id}", h.isFollowing)
	mux.HandleFunc("GET /v1/users/{id}", h.profile)
	mux.HandleFunc("GET /v1/users/{id}/following", h.followingProfiles)
	mux.HandleFunc("GET /v1/users/{id}/stats", h.stats)
	mux.HandleFunc("GET /v1/users/{id}/activities", h.history)
	mux.HandleFunc("POST /v1/activities", h.logActivity)
	mux.HandleFunc("POST /v1/activities/{id}/like", h.toggleLike)
	mux.HandleFunc("POST /v1/activities/{id}/comments", h.addComment)
	mux.HandleFunc("GET /v1/feed", h.feed)
	mux.HandleFunc("GET /v1/matches/{id}", h.match)
	mux.HandleFunc("POST /v1/chats/{id}", h.startChat)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// viewer returns the authenticated caller after checking scope. Writers may
// also read.
func viewer(w http.ResponseWriter, r *http.Request, scope string) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	if !claims.HasScope(scope) && !(scope == auth.ScopeSocialRead && claims.HasScope(auth.ScopeSocialWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return "", false
	}
	return claims.Subject, true
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}
	target := r.PathValue("id")
	if err := h.service.Follow(r.Context(), viewerID, target); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowStatus{UserID: target, Following: true})
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}
	target := r.PathValue("id")
	if err := h.service.Unfollow(r.Context(), viewerID, target); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowStatus{UserID: target, Following: false})
}

func (h *Handler) isFollowing(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialRead)
	if !ok {
		return
	}
	target := r.PathValue("id")
	writeJSON(w, http.StatusOK, FollowStatus{UserID: target, Following: h.service.IsFollowing(viewerID, target)})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r, auth.ScopeSocialRead); !ok {
		return
	}
	profile, err := h.service.Profile(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) followingProfiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r, auth.ScopeSocialRead); !ok {
		return
	}
	profiles, err := h.service.FollowingProfiles(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileList{Items: profiles})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r, auth.ScopeSocialRead); !ok {
		return
	}
	stats, err := h.service.Stats(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r, auth.ScopeSocialRead); !ok {
		return
	}
	logs, err := h.service.History(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityList{Items: logs})
}

func (h *Handler) logActivity(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}

	var req LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	log, err := h.service.LogActivity(r.Context(), viewerID, req.Draft())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}
	log, err := h.service.ToggleLike(r.Context(), r.PathValue("id"), viewerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{Liked: log.LikedBy(viewerID), Activity: log})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	comment, err := h.service.AddComment(r.Context(), r.PathValue("id"), viewerID, req.Text)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialRead)
	if !ok {
		return
	}

	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxFeedLimit)
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	page, err := h.service.Feed(viewerID, cursor, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FeedResponse{Items: page.Items, NextCursor: persistence.EncodeCursor(page.Next)})
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialRead)
	if !ok {
		return
	}
	rec, err := h.service.Match(r.Context(), viewerID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) startChat(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := viewer(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}
	partner, err := h.service.StartChat(viewerID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Partner: partner})
}

// LogActivityRequest is the payload for POST /v1/activities.
type LogActivityRequest struct {
	ActivityType    string   `json:"activity_type"`
	DurationMinutes int      `json:"duration_minutes"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	Notes           string   `json:"notes"`
	TaggedUserIDs   []string `json:"tagged_user_ids"`
}

// Draft converts the request into the engine input. Value rules such as a
// non-negative duration are enforced by the engine.
func (r LogActivityRequest) Draft() domain.ActivityDraft {
	return domain.ActivityDraft{
		ActivityType:    strings.TrimSpace(r.ActivityType),
		DurationMinutes: r.DurationMinutes,
		DistanceKm:      r.DistanceKm,
		Notes:           r.Notes,
		TaggedUserIDs:   r.TaggedUserIDs,
	}
}

// AddCommentRequest is the payload for POST /v1/activities/{id}/comments.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// FollowStatus reports the caller's relationship to a user.
type FollowStatus struct {
	UserID    string `json:"user_id"`
	Following bool   `json:"following"`
}

// ProfileList packages profile results.
type ProfileList struct {
	Items []domain.UserProfile `json:"items"`
}

// ActivityList packages ledger results.
type ActivityList struct {
	Items []domain.ActivityLog `json:"items"`
}

// FeedResponse is one feed page.
type FeedResponse struct {
	Items      []domain.ActivityLog `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// LikeResponse reports the caller's like state after a toggle.
type LikeResponse struct {
	Liked    bool               `json:"liked"`
	Activity domain.ActivityLog `json:"activity"`
}

// ChatResponse identifies the resolved chat partner.
type ChatResponse struct {
	Partner domain.UserProfile `json:"partner"`
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidOperation):
		writeError(w, http.StatusUnprocessableEntity, "invalid_operation", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
