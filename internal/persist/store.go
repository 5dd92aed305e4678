package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Store writes project snapshots to the persistence service.
type Store struct {
	logger zerolog.Logger
	client *http.Client
	url    string
}

// NewStore creates a store for the given persistence endpoint.
func NewStore(logger zerolog.Logger, persistURL string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		logger: logger.With().Str("component", "persist").Logger(),
		client: &http.Client{Timeout: timeout},
		url:    persistURL,
	}
}

// Save posts the snapshot. Callers treat an error as transient; the
// autosaver retries on its next cycle.
func (s *Store) Save(ctx context.Context, snap ProjectSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("saving project %s: %w", snap.ProjectID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("persistence service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	s.logger.Debug().Str("project_id", snap.ProjectID).Msg("project saved")
	return nil
}

// SaveFile writes a snapshot as an indented JSON project file.
func SaveFile(path string, snap ProjectSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing project file: %w", err)
	}
	return nil
}

// LoadFile reads a project file written by SaveFile.
func LoadFile(path string) (ProjectSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectSnapshot{}, fmt.Errorf("reading project file: %w", err)
	}
	var snap ProjectSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ProjectSnapshot{}, fmt.Errorf("parsing project file %s: %w", path, err)
	}
	return snap, nil
}
