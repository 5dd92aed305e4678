package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

// Fetcher resolves any asset reference variant to raw media bytes. Network
// fetches are time-bounded so one unreachable asset cannot stall callers.
type Fetcher struct {
	logger  zerolog.Logger
	client  *http.Client
	timeout time.Duration
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(logger zerolog.Logger, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		logger:  logger.With().Str("component", "fetcher").Logger(),
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Fetch returns the referenced media bytes. Inline references resolve
// without I/O, stored paths read from disk, URLs are fetched over HTTP.
func (f *Fetcher) Fetch(ctx context.Context, ref timeline.AssetRef) ([]byte, error) {
	switch ref.Kind() {
	case timeline.AssetInlineBytes:
		data, _ := ref.Inline()
		return data, nil

	case timeline.AssetStoredPath:
		data, err := os.ReadFile(ref.Location())
		if err != nil {
			return nil, fmt.Errorf("reading asset %s: %w", ref.Location(), err)
		}
		return data, nil

	case timeline.AssetURL:
		return f.fetchURL(ctx, ref.Location())

	default:
		return nil, fmt.Errorf("empty asset reference")
	}
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}

	f.logger.Debug().Str("url", url).Int("bytes", len(data)).Msg("asset fetched")
	return data, nil
}
