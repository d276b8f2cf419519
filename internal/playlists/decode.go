package playlists

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"playlistqa/internal/datastore"
)

// RowError reports a data store row that does not match the expected shape.
type RowError struct {
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func decodePlaylist(row datastore.Row) (Playlist, error) {
	var (
		p   Playlist
		err error
	)
	if p.ID, err = idField(row, "id"); err != nil {
		return Playlist{}, err
	}
	if p.Name, err = stringField(row, "name"); err != nil {
		return Playlist{}, err
	}
	if p.Owner, err = stringField(row, "owner"); err != nil {
		return Playlist{}, err
	}
	if p.LikeCount, err = countField(row, "like_count"); err != nil {
		return Playlist{}, err
	}
	return p, nil
}

func decodeLikeResult(row datastore.Row) (LikeResult, error) {
	var (
		r   LikeResult
		err error
	)
	if r.PlaylistID, err = idField(row, "playlist_id"); err != nil {
		return LikeResult{}, err
	}
	if r.LikeCount, err = countField(row, "like_count"); err != nil {
		return LikeResult{}, err
	}
	return r, nil
}

// idField accepts a non-empty string or an integral number.
func idField(row datastore.Row, field string) (string, error) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", &RowError{Field: field, Reason: "missing"}
	}
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) == "" {
			return "", &RowError{Field: field, Reason: "empty"}
		}
		return id, nil
	case [16]byte:
		return uuid.UUID(id).String(), nil
	default:
		n, err := integer(v)
		if err != nil {
			return "", &RowError{Field: field, Reason: fmt.Sprintf("unsupported type %T", v)}
		}
		return strconv.FormatInt(n, 10), nil
	}
}

func stringField(row datastore.Row, field string) (string, error) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", &RowError{Field: field, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &RowError{Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func countField(row datastore.Row, field string) (int64, error) {
	v, ok := row[field]
	if !ok || v == nil {
		return 0, &RowError{Field: field, Reason: "missing"}
	}
	n, err := integer(v)
	if err != nil {
		return 0, &RowError{Field: field, Reason: err.Error()}
	}
	if n < 0 {
		return 0, &RowError{Field: field, Reason: "negative"}
	}
	return n, nil
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n.String())
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

