// Package export flattens the timeline into its transport form and drives
// the remote render protocol. Clips whose audio exists only as in-memory
// bytes are uploaded to the asset store first, so the submitted timeline
// never carries raw byte payloads.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Uploader pushes raw media bytes to the asset store and returns the
// stored location assigned by the server.
type Uploader struct {
	logger zerolog.Logger
	client *http.Client
	url    string
}

// NewUploader creates an uploader for the given asset store endpoint.
func NewUploader(logger zerolog.Logger, uploadURL string, timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Uploader{
		logger: logger.With().Str("component", "uploader").Logger(),
		client: &http.Client{Timeout: timeout},
		url:    uploadURL,
	}
}

type uploadResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// Upload posts the bytes as a multipart form file and returns the stored
// location. The server may answer with either a url or a path field.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	u.logger.Debug().Str("name", name).Int("bytes", len(data)).Msg("uploading asset")
	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("asset store returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	loc := ur.URL
	if loc == "" {
		loc = ur.Path
	}
	if loc == "" {
		return "", fmt.Errorf("asset store response carried no location")
	}
	u.logger.Debug().Str("name", name).Str("location", loc).Msg("asset stored")
	return loc, nil
}
