package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"playlistqa/internal/playlists"
)

// PlaylistService captures the playlist operations needed by the HTTP handlers.
type PlaylistService interface {
	List(ctx context.Context) ([]playlists.Playlist, error)
	Like(ctx context.Context, id string) (playlists.LikeResult, error)
}

// Server wires HTTP handlers to the playlist service.
type Server struct {
	playlists PlaylistService
	log       zerolog.Logger
}

// New configures a Server.
func New(playlists PlaylistService, logger zerolog.Logger) *Server {
	return &Server{playlists: playlists, log: logger}
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Detail  string   `json:"detail"`
	Missing []string `json:"missing,omitempty"`
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	router.HandleFunc("/api/playlists", s.listPlaylists).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}/like", s.likePlaylist).Methods(http.MethodPost)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) listPlaylists(w http.ResponseWriter, r *http.Request) {
	result, err := s.playlists.List(r.Context())
	if err != nil {
		s.logger(r).Error().Err(err).Msg("fetch playlists")
		writeError(w, http.StatusInternalServerError, "Failed to fetch playlists: "+err.Error())
		return
	}
	if result == nil {
		result = []playlists.Playlist{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) likePlaylist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := s.playlists.Like(r.Context(), id)
	if err != nil {
		if errors.Is(err, playlists.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		s.logger(r).Error().Err(err).Str("playlist_id", id).Msg("like playlist")
		writeError(w, http.StatusInternalServerError, "Failed to like playlist: "+err.Error())
		return
	}

	s.logger(r).Debug().Str("playlist_id", result.PlaylistID).Int64("like_count", result.LikeCount).Msg("playlist liked")
	writeJSON(w, http.StatusOK, result)
}

// logger prefers the request-scoped logger installed by the logging
// middleware so entries carry the request id.
func (s *Server) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

// Unavailable returns a handler that answers every request with a diagnostic
// 500. It is served in place of Routes when the process could not load its
// configuration.
func Unavailable(missing []string, cause error) http.Handler {
	body := errorResponse{Detail: "Service unavailable: configuration error", Missing: missing}
	if len(missing) > 0 {
		body.Detail = "Missing environment variables"
	} else if cause != nil {
		body.Detail = "Service unavailable: " + cause.Error()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, body)
	})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
