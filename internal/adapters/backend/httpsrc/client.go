package httpsrc

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

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/domain/model"
)

const (
	defaultTimeout  = 5 * time.Second
	maxErrorBodyLen = 512
)

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) {
		if c != nil {
			b.client = c
		}
	}
}

// WithSelf sets the requesting player sent with every call.
func WithSelf(id string) Option {
	return func(b *Backend) { b.self.Set(id) }
}

// Backend implements backend.Backend against a remote HTTP source.
type Backend struct {
	baseURL string
	client  *http.Client
	self    backend.Self
}

// New creates a remote backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Backend {
	b := &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetSelf implements backend.SelfSetter.
func (b *Backend) SetSelf(id string) { b.self.Set(id) }

// statusError maps a non-2xx response onto the backend error kinds.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	msg := strings.TrimSpace(string(body))
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		msg = er.Message
	}
	kind := backend.ErrPermanent
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = backend.ErrTransient
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = backend.ErrTransient
	case resp.StatusCode == http.StatusNotFound:
		kind = backend.ErrNotFound
	case er.Code == "invalid_cursor":
		kind = backend.ErrInvalidCursor
	}
	return fmt.Errorf("%s: %w: status %d: %s", op, kind, resp.StatusCode, msg)
}

func (b *Backend) do(ctx context.Context, op, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, backend.ErrPermanent, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if self := b.self.ID(); self != "" {
		req.Header.Set(PlayerHeader, self)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %v", op, backend.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: decode: %v", op, backend.ErrTransient, err)
	}
	return nil
}

func filterQuery(filters model.Filters) url.Values {
	q := url.Values{}
	q.Set("social", string(filters.Social))
	q.Set("time", string(filters.Time))
	return q
}

// TopCursor implements backend.Backend.
func (b *Backend) TopCursor(ctx context.Context, filters model.Filters) (model.PageCursor, error) {
	q := filterQuery(filters)
	var out topResponse
	if err := b.do(ctx, "top cursor", http.MethodGet, "/top?"+q.Encode(), nil, &out); err != nil {
		return model.PageCursor{}, err
	}
	if out.Cursor == "" {
		return model.PageCursor{}, fmt.Errorf("top cursor: %w: empty cursor", backend.ErrPermanent)
	}
	return model.NewCursor(out.Cursor), nil
}

// FetchPage implements backend.Backend.
func (b *Backend) FetchPage(ctx context.Context, c model.PageCursor, size int) (model.Page, error) {
	if !c.Valid {
		return model.Page{}, fmt.Errorf("fetch page: %w", backend.ErrInvalidCursor)
	}
	q := url.Values{}
	q.Set("cursor", c.Token)
	q.Set("size", strconv.Itoa(size))
	var out pageResponse
	if err := b.do(ctx, "fetch page", http.MethodGet, "/page?"+q.Encode(), nil, &out); err != nil {
		return model.Page{}, err
	}
	return toPage(out), nil
}

// FetchDetail implements backend.Backend.
func (b *Backend) FetchDetail(ctx context.Context, playerID string) (model.Detail, error) {
	var out detailResponse
	if err := b.do(ctx, "fetch detail", http.MethodGet, "/players/"+url.PathEscape(playerID), nil, &out); err != nil {
		return model.Detail{}, err
	}
	return model.Detail{DisplayName: out.DisplayName, AvatarRef: out.AvatarRef}, nil
}

// FetchSelf implements backend.Backend.
func (b *Backend) FetchSelf(ctx context.Context) (model.Player, error) {
	var out selfResponse
	if err := b.do(ctx, "fetch self", http.MethodGet, "/me", nil, &out); err != nil {
		return model.Player{}, err
	}
	if out.PlayerID == "" {
		return model.Player{}, fmt.Errorf("fetch self: %w: empty player id", backend.ErrPermanent)
	}
	return model.Player{ID: out.PlayerID, DisplayName: out.DisplayName}, nil
}

// FetchSummary implements backend.Backend.
func (b *Backend) FetchSummary(ctx context.Context, filters model.Filters) (model.RawRow, error) {
	var out rowDTO
	if err := b.do(ctx, "fetch summary", http.MethodGet, "/me/summary?"+filterQuery(filters).Encode(), nil, &out); err != nil {
		return model.RawRow{}, err
	}
	return toRow(out), nil
}

// Submit implements backend.Backend.
func (b *Backend) Submit(ctx context.Context, value int64) error {
	return b.do(ctx, "submit", http.MethodPost, "/scores", scoreRequest{Value: value}, nil)
}
