package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrServiceUnreachable marks a render submission that never reached the
// service: connection refused, DNS failure, timeout.
var ErrServiceUnreachable = errors.New("render service unreachable")

// ErrRenderRejected marks a submission the service refused; the wrapped
// message carries the server's detail verbatim.
var ErrRenderRejected = errors.New("render service rejected the request")

// Resolution is the target output size submitted with a render job.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RenderRequest is the body submitted to the render service.
type RenderRequest struct {
	ProjectID  string      `json:"projectId"`
	Timeline   []ClipEntry `json:"timeline"`
	Resolution Resolution  `json:"resolution"`
	JobID      string      `json:"jobId"`
}

// RenderResult is the service's answer in either of its two shapes: the
// rendered video inline, or a location to download it from.
type RenderResult struct {
	JobID       string
	Video       []byte
	ContentType string
	URL         string
}

// Client submits render jobs and resolves their results.
type Client struct {
	logger zerolog.Logger
	client *http.Client
	url    string
}

// NewClient creates a render client for the given endpoint.
func NewClient(logger zerolog.Logger, renderURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		logger: logger.With().Str("component", "render").Logger(),
		client: &http.Client{Timeout: timeout},
		url:    renderURL,
	}
}

// Render submits the serialized timeline under a fresh job id and returns
// the rendered artifact or its download location.
func (c *Client) Render(ctx context.Context, projectID string, entries []ClipEntry, res Resolution) (RenderResult, error) {
	req := RenderRequest{
		ProjectID:  projectID,
		Timeline:   entries,
		Resolution: res,
		JobID:      uuid.NewString(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return RenderResult{}, fmt.Errorf("encoding render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return RenderResult{}, fmt.Errorf("building render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info().Str("job_id", req.JobID).Int("clips", len(entries)).Msg("submitting render job")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return RenderResult{}, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return RenderResult{}, fmt.Errorf("%w: status %d: %s", ErrRenderRejected, resp.StatusCode, bytes.TrimSpace(detail))
	}

	result := RenderResult{JobID: req.JobID}
	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var loc struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
			return RenderResult{}, fmt.Errorf("decoding render response: %w", err)
		}
		if loc.URL == "" {
			return RenderResult{}, fmt.Errorf("render response carried no download location")
		}
		result.URL = loc.URL
	default:
		// Any non-JSON success body is the rendered video itself.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return RenderResult{}, fmt.Errorf("reading rendered video: %w", err)
		}
		if len(data) == 0 {
			return RenderResult{}, fmt.Errorf("render response body was empty")
		}
		result.Video = data
		result.ContentType = contentType
	}

	c.logger.Info().Str("job_id", req.JobID).Bool("inline", result.URL == "").Msg("render job finished")
	return result, nil
}

// Download fetches a rendered artifact from the location the service
// returned.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
