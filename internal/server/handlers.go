package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stylus/stylus/internal/session"
	"github.com/stylus/stylus/internal/store"
)

type stateRequest struct {
	Connector session.ConnectorInfo `json:"connector"`
	Snapshot  session.Snapshot      `json:"snapshot"`
}

type loveRequest struct {
	Loved bool `json:"loved"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type statusResponse struct {
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"startedAt"`
	UptimeSeconds float64   `json:"uptimeSeconds"`
	Providers     []string  `json:"providers"`
	Sessions      int       `json:"sessions"`
	Scrobbles     uint64    `json:"scrobbles"`
	Errors        uint64    `json:"errors"`
}

type historyEntry struct {
	ID          int64     `json:"id"`
	Artist      string    `json:"artist"`
	Track       string    `json:"track"`
	Album       string    `json:"album,omitempty"`
	Duration    float64   `json:"duration"`
	ScrobbledAt time.Time `json:"scrobbledAt"`
	Providers   []string  `json:"providers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var providers []string
	if s.manager != nil {
		providers = s.manager.EnabledNames()
	}
	s.respondJSON(w, http.StatusOK, statusResponse{
		Version:       s.version,
		StartedAt:     s.started,
		UptimeSeconds: time.Since(s.started).Seconds(),
		Providers:     providers,
		Sessions:      s.registry.Len(),
		Scrobbles:     s.counters.Scrobbles(),
		Errors:        s.counters.Errors(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 200 {
		limit = 200
	}

	entries, err := s.store.RecentJournalEntries(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read journal")
		s.respondError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:          e.ID,
			Artist:      e.Artist,
			Track:       e.Track,
			Album:       e.Album,
			Duration:    e.Duration.Seconds(),
			ScrobbledAt: e.ScrobbledAt,
			Providers:   e.Providers,
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed snapshot: "+err.Error())
		return
	}

	id, ctrl := s.registry.GetOrCreate(chi.URLParam(r, "sessionID"), req.Connector)
	ctrl.OnStateChanged(req.Snapshot)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"session": id})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, ok := s.registry.Info(chi.URLParam(r, "sessionID"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Remove(chi.URLParam(r, "sessionID")) {
		s.respondError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	view, ok := ctrl.CurrentSong()
	if !ok {
		s.respondJSON(w, http.StatusOK, struct{}{})
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	s.doEdit(w, r, ctrl)
}

func (s *Server) handleResetData(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	s.doResetData(w, ctrl)
}

func (s *Server) handleLove(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	s.doLove(w, r, ctrl)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	s.doSkip(w, ctrl)
}

func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	ctrl, id, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	var req enabledRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	ctrl.SetEnabled(req.Enabled)

	info, ok := s.registry.Info(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := s.sessionController(w, r)
	if !ok {
		return
	}
	ctrl.ResetState()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActiveSong(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.activeController(w)
	if !ok {
		return
	}
	view, ok := ctrl.CurrentSong()
	if !ok {
		s.respondError(w, http.StatusNotFound, "no active session")
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleActiveLove(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.activeController(w)
	if !ok {
		return
	}
	s.doLove(w, r, ctrl)
}

func (s *Server) handleActiveSkip(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.activeController(w)
	if !ok {
		return
	}
	s.doSkip(w, ctrl)
}

func (s *Server) handleActiveEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.activeController(w)
	if !ok {
		return
	}
	s.doEdit(w, r, ctrl)
}

func (s *Server) handleActiveResetData(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.activeController(w)
	if !ok {
		return
	}
	s.doResetData(w, ctrl)
}

// doEdit applies a metadata edit to the controller and persists it to the
// edits store so future plays of the same identity pick it up.
func (s *Server) doEdit(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	var edit session.EditFields
	if !s.decodeJSON(w, r, &edit) {
		return
	}

	view, ok := ctrl.CurrentSong()
	if !ok {
		s.respondOpError(w, session.ErrNoActiveSong)
		return
	}

	if err := ctrl.SetUserSongData(edit); err != nil {
		s.respondOpError(w, err)
		return
	}

	if err := s.saveEdit(r.Context(), view.Parsed.Key(), edit); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist song edit")
	}

	updated, _ := ctrl.CurrentSong()
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) doResetData(w http.ResponseWriter, ctrl *session.Controller) {
	if err := ctrl.ResetSongData(); err != nil {
		s.respondOpError(w, err)
		return
	}
	view, _ := ctrl.CurrentSong()
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) doLove(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	var req loveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := ctrl.ToggleLove(r.Context(), req.Loved); err != nil {
		s.respondOpError(w, err)
		return
	}
	view, _ := ctrl.CurrentSong()
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) doSkip(w http.ResponseWriter, ctrl *session.Controller) {
	if err := ctrl.SkipCurrentSong(); err != nil {
		s.respondOpError(w, err)
		return
	}
	view, _ := ctrl.CurrentSong()
	s.respondJSON(w, http.StatusOK, view)
}

// saveEdit merges the request's fields over any stored edit for the key.
// Per-field merge keeps an earlier artist fix when a later request only
// corrects the track.
func (s *Server) saveEdit(ctx context.Context, key string, edit session.EditFields) error {
	if s.store == nil || edit.Empty() {
		return nil
	}

	merged := store.Edit{Key: key}
	if existing, ok, err := s.store.GetEdit(ctx, key); err != nil {
		return err
	} else if ok {
		merged = existing
	}

	if edit.Artist != "" {
		merged.Artist = edit.Artist
	}
	if edit.Track != "" {
		merged.Track = edit.Track
	}
	if edit.Album != "" {
		merged.Album = edit.Album
	}
	return s.store.SaveEdit(ctx, merged)
}

// sessionController resolves the {sessionID} route parameter, writing the
// 404 itself when the session is unknown.
func (s *Server) sessionController(w http.ResponseWriter, r *http.Request) (*session.Controller, string, bool) {
	id := chi.URLParam(r, "sessionID")
	ctrl, ok := s.registry.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown session")
		return nil, "", false
	}
	return ctrl, id, true
}

// activeController resolves the active session for the aggregate
// endpoints, writing the 404 itself when there is none.
func (s *Server) activeController(w http.ResponseWriter) (*session.Controller, bool) {
	_, ctrl, ok := s.registry.Active()
	if !ok {
		s.respondError(w, http.StatusNotFound, "no active session")
		return nil, false
	}
	return ctrl, true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// respondOpError maps controller errors onto HTTP statuses: a missing song
// is the caller's 404, a provider-side rejection is an upstream failure.
func (s *Server) respondOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSong):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSubmissionFailed):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
