package playlists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"playlistqa/internal/datastore"
)

const (
	collection        = "playlists"
	incrementLikeProc = "increment_playlist_like"
	playlistIDParam   = "p_playlist_id"
	defaultTimeout    = 10 * time.Second
)

// ErrPlaylistNotFound signals the increment procedure matched no playlist.
var ErrPlaylistNotFound = errors.New("playlist not found")

// Playlist is the public projection of a playlist row. created_at only
// orders the list on the data store side and is not decoded.
type Playlist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	LikeCount int64  `json:"like_count"`
}

// LikeResult is the post-increment state returned by Like.
type LikeResult struct {
	PlaylistID string `json:"playlist_id"`
	LikeCount  int64  `json:"like_count"`
}

// Store reads and updates playlists through a data store client.
//
// Like delegates the increment entirely to the increment_playlist_like
// procedure, which the data store executes atomically. Store holds no locks
// and does not serialize concurrent likes itself.
type Store struct {
	client  datastore.Client
	timeout time.Duration
}

// New creates a Store. A non-positive timeout defaults to ten seconds.
func New(client datastore.Client, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{client: client, timeout: timeout}
}

// List returns every playlist ordered by like count, newest first on ties.
func (s *Store) List(ctx context.Context) ([]Playlist, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	rows, err := s.client.Select(ctx, collection,
		datastore.Order{Column: "like_count", Desc: true},
		datastore.Order{Column: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	playlists := make([]Playlist, 0, len(rows))
	for i, row := range rows {
		p, err := decodePlaylist(row)
		if err != nil {
			return nil, fmt.Errorf("playlist row %d: %w", i, err)
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

// Like increments the like counter of the playlist with the given id.
func (s *Store) Like(ctx context.Context, id string) (LikeResult, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	rows, err := s.client.RPC(ctx, incrementLikeProc, map[string]any{playlistIDParam: id})
	if err != nil {
		return LikeResult{}, err
	}
	if len(rows) == 0 {
		return LikeResult{}, ErrPlaylistNotFound
	}

	result, err := decodeLikeResult(rows[0])
	if err != nil {
		return LikeResult{}, fmt.Errorf("like result: %w", err)
	}
	return result, nil
}

// callContext bounds a data store call by the store timeout. Cancellation of
// the caller's context is not propagated, so a disconnecting client does not
// abort a call that is already in flight.
func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}
