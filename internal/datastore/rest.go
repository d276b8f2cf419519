package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const restPrefix = "/rest/v1"

// APIError is an error response returned by the REST API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.Status); text != "" {
		return fmt.Sprintf("%d %s", e.Status, text)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// RESTClient talks to a PostgREST-compatible HTTP API.
type RESTClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewREST creates a REST client. A zero Timeout defaults to ten seconds.
func NewREST(opts Options) *RESTClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		serviceKey: opts.ServiceKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Select implements Client.
func (c *RESTClient) Select(ctx context.Context, collection string, order ...Order) ([]Row, error) {
	if err := validName("collection", collection); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("select", "*")
	if len(order) > 0 {
		terms := make([]string, 0, len(order))
		for _, o := range order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			terms = append(terms, o.Column+"."+dir)
		}
		query.Set("order", strings.Join(terms, ","))
	}

	endpoint := c.baseURL + restPrefix + "/" + url.PathEscape(collection) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create select request: %w", err)
	}
	return c.do(req)
}

// RPC implements Client.
func (c *RESTClient) RPC(ctx context.Context, procedure string, params map[string]any) ([]Row, error) {
	if err := validName("procedure", procedure); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode rpc params: %w", err)
	}

	endpoint := c.baseURL + restPrefix + "/rpc/" + url.PathEscape(procedure)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *RESTClient) do(req *http.Request) ([]Row, error) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(bytes.TrimSpace(raw)) > 0 {
			_ = json.Unmarshal(raw, apiErr)
		}
		return nil, apiErr
	}

	return decodeRows(raw)
}

// decodeRows accepts an array of objects, a single object, or an empty/null
// body. Numbers are kept as json.Number so integer columns stay exact.
func decodeRows(raw []byte) ([]Row, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Row{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	switch raw[0] {
	case '[':
		var rows []Row
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		if rows == nil {
			rows = []Row{}
		}
		return rows, nil
	case '{':
		var row Row
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		return []Row{row}, nil
	default:
		return nil, fmt.Errorf("decode rows: unexpected response body %q", truncate(raw, 64))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
