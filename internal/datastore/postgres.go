package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// SQLClient runs queries directly against Postgres.
type SQLClient struct {
	db *sql.DB
}

// NewSQL wraps an open database handle.
func NewSQL(db *sql.DB) *SQLClient {
	return &SQLClient{db: db}
}

// OpenPostgres opens a pgx-backed database handle and retries the initial
// ping until the instance responds. The service key becomes the password when
// the URL does not carry one.
func OpenPostgres(ctx context.Context, opts Options) (*sql.DB, error) {
	dsn, err := postgresDSN(opts.URL, opts.ServiceKey)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	const (
		pingTimeout    = 5 * time.Second
		maxWait        = 30 * time.Second
		initialBackoff = 500 * time.Millisecond
		maxBackoff     = 5 * time.Second
	)

	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	var lastErr error

	for {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			return db, nil
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}

		if !sleepContext(ctx, backoff) {
			break
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("ping database: %w", lastErr)
}

// sleepContext waits for d and reports false when ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func postgresDSN(raw, serviceKey string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse data store url: %w", err)
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			return u.String(), nil
		}
		u.User = url.UserPassword(u.User.Username(), serviceKey)
		return u.String(), nil
	}
	u.User = url.UserPassword("postgres", serviceKey)
	return u.String(), nil
}

// Select implements Client.
func (c *SQLClient) Select(ctx context.Context, collection string, order ...Order) ([]Row, error) {
	query, err := selectQuery(collection, order)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, describe(err))
	}
	defer rows.Close()

	return scanRows(rows)
}

// RPC implements Client. Parameters are passed with named notation in sorted
// name order.
func (c *SQLClient) RPC(ctx context.Context, procedure string, params map[string]any) ([]Row, error) {
	query, args, err := rpcQuery(procedure, params)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", procedure, describe(err))
	}
	defer rows.Close()

	return scanRows(rows)
}

func selectQuery(collection string, order []Order) (string, error) {
	if err := validName("collection", collection); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pgx.Identifier{collection}.Sanitize())
	for i, o := range order {
		if err := validName("order column", o.Column); err != nil {
			return "", err
		}
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{o.Column}.Sanitize())
		if o.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	return b.String(), nil
}

func rpcQuery(procedure string, params map[string]any) (string, []any, error) {
	if err := validName("procedure", procedure); err != nil {
		return "", nil, err
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	terms := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for i, name := range names {
		if err := validName("parameter", name); err != nil {
			return "", nil, err
		}
		terms = append(terms, fmt.Sprintf("%s => $%d", pgx.Identifier{name}.Sanitize(), i+1))
		args = append(args, params[name])
	}

	query := fmt.Sprintf("SELECT * FROM %s(%s)", pgx.Identifier{procedure}.Sanitize(), strings.Join(terms, ", "))
	return query, args, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", describe(err))
	}
	return result, nil
}

// describe keeps Postgres error text readable while preserving the chain.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}
