// Package client is a small HTTP client for the ladder API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/types"
)

// DefaultTimeout bounds every request unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// ErrDecode is returned when a response body cannot be parsed.
var ErrDecode = errors.New("decode response")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// Client talks to one ladder server.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:9080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Range fetches ranks first..last from one source. last <= 0 reads to the end.
func (c *Client) Range(ctx context.Context, source string, first, last int, details bool) (int, []model.ScoreEntry, error) {
	q := url.Values{}
	q.Set("first", strconv.Itoa(first))
	if last > 0 {
		q.Set("last", strconv.Itoa(last))
	}
	if details {
		q.Set("details", "true")
	}
	var resp types.RangeResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sources/"+url.PathEscape(source)+"/range?"+q.Encode(), nil, &resp); err != nil {
		return 0, nil, err
	}
	return resp.Anchor, toModels(resp.Entries), nil
}

// Leaderboard returns the top limit merged entries.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]model.ScoreEntry, error) {
	var resp []types.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/leaderboard?limit="+strconv.Itoa(limit), nil, &resp); err != nil {
		return nil, err
	}
	return toModels(resp), nil
}

// NextAbove returns the entry to beat for threshold. found is false when
// nothing ranks ahead.
func (c *Client) NextAbove(ctx context.Context, threshold int64) (entry model.ScoreEntry, found bool, err error) {
	var resp types.NextAboveResponse
	if err := c.do(ctx, http.MethodGet, "/v1/next?threshold="+strconv.FormatInt(threshold, 10), nil, &resp); err != nil {
		return model.ScoreEntry{}, false, err
	}
	if !resp.Found || resp.Entry == nil {
		return model.MaxEntry(), false, nil
	}
	return types.ToModel(*resp.Entry), true, nil
}

// PersonalBest returns the requesting player's merged row, if any.
func (c *Client) PersonalBest(ctx context.Context) (model.ScoreEntry, bool, error) {
	var resp types.PersonalBestResponse
	if err := c.do(ctx, http.MethodGet, "/v1/personal-best", nil, &resp); err != nil {
		return model.ScoreEntry{}, false, err
	}
	if !resp.Found || resp.Entry == nil {
		return model.NoScore(), false, nil
	}
	return types.ToModel(*resp.Entry), true, nil
}

// PlayerScore returns the requesting player's own rank and value on source.
func (c *Client) PlayerScore(ctx context.Context, source string) (model.ScoreEntry, error) {
	var resp types.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/sources/"+url.PathEscape(source)+"/me", nil, &resp); err != nil {
		return model.ScoreEntry{}, err
	}
	return types.ToModel(resp), nil
}

// Rebuild asks for a new merge. With wait it returns once the merge is live.
func (c *Client) Rebuild(ctx context.Context, wait bool) (string, error) {
	var resp status
	if err := c.do(ctx, http.MethodPost, "/v1/rebuild?wait="+strconv.FormatBool(wait), nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Submit queues value for every source and returns how many accepted it.
func (c *Client) Submit(ctx context.Context, value int64) (int, error) {
	var resp status
	if err := c.do(ctx, http.MethodPost, "/v1/scores", map[string]int64{"value": value}, &resp); err != nil {
		return 0, err
	}
	return resp.Queued, nil
}

// Session switches the requesting player.
func (c *Client) Session(ctx context.Context, playerID string) error {
	return c.do(ctx, http.MethodPost, "/v1/session", map[string]string{"player_id": playerID}, &status{})
}

// Stats returns the raw /stats document.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type status struct {
	Status string `json:"status"`
	Queued int    `json:"queued,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var e apiError
		if json.Unmarshal(raw, &e) == nil && e.Code != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}

func toModels(in []types.Entry) []model.ScoreEntry {
	out := make([]model.ScoreEntry, len(in))
	for i, e := range in {
		out[i] = types.ToModel(e)
	}
	return out
}
