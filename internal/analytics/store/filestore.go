package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/veridian-network/veridian-api/internal/models"
)

// FileStore keeps the history in memory and mirrors it into a single JSON
// document, rewritten wholesale after every append.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	history []models.AnalyticsDataPoint
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements the Store interface. A missing file means a fresh start.
func (s *FileStore) Load(ctx context.Context) ([]models.AnalyticsDataPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read analytics file: %w", err)
	}

	var history []models.AnalyticsDataPoint
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("failed to parse analytics file: %w", err)
	}

	s.history = history
	return s.copyHistory(), nil
}

// Append implements the Store interface. The whole document is written to a
// temp file and renamed over the old one so a crash never leaves half a file.
func (s *FileStore) Append(ctx context.Context, point models.AnalyticsDataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.copyHistory(), point)

	raw, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analytics history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".analytics-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write analytics history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace analytics file: %w", err)
	}

	s.history = history
	return nil
}

// Snapshot implements the Store interface
func (s *FileStore) Snapshot(ctx context.Context) ([]models.AnalyticsDataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyHistory(), nil
}

// Latest implements the Store interface
func (s *FileStore) Latest(ctx context.Context) (*models.AnalyticsDataPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil, false, nil
	}
	latest := s.history[len(s.history)-1]
	return &latest, true, nil
}

func (s *FileStore) copyHistory() []models.AnalyticsDataPoint {
	out := make([]models.AnalyticsDataPoint, len(s.history))
	copy(out, s.history)
	return out
}
