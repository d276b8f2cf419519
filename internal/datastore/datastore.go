// Package datastore provides a small client for the hosted relational data
// store: querying a named collection with ordering, and invoking stored
// procedures. Two backends are available, a PostgREST-style HTTP API and a
// direct Postgres connection.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Order describes one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Client is the data store surface the service depends on.
type Client interface {
	// Select returns every row of collection sorted by order.
	Select(ctx context.Context, collection string, order ...Order) ([]Row, error)
	// RPC invokes a stored procedure and returns its result rows.
	RPC(ctx context.Context, procedure string, params map[string]any) ([]Row, error)
}

// Options configure a client.
type Options struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
}

// ErrUnsupportedScheme is returned by New for URLs it cannot route to a backend.
var ErrUnsupportedScheme = errors.New("unsupported data store url scheme")

// New builds a Client for opts.URL: http(s) URLs use the REST backend,
// postgres URLs connect directly. The returned close func releases any held
// resources.
func New(ctx context.Context, opts Options) (Client, func() error, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse data store url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewREST(opts), func() error { return nil }, nil
	case "postgres", "postgresql":
		db, err := OpenPostgres(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return NewSQL(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func validName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	return nil
}
