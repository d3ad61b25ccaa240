package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// ImageGetter downloads the image behind an avatar reference.
type ImageGetter interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// HTTPGetter fetches references that are plain URLs.
type HTTPGetter struct {
	Client *http.Client
}

// Get downloads ref and returns its body.
func (g HTTPGetter) Get(ctx context.Context, ref string) ([]byte, error) {
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("avatar request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("avatar read: %w", err)
	}
	if len(body) > maxImageBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}
