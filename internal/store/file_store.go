package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store is the persistence boundary used by the experiment runner and server.
type Store interface {
	Append(records ...Record) error
	Load() ([]Record, error)
}

// FileStore keeps every record in one JSON array file. Appends rewrite the
// whole file through a temporary file and a rename, so readers never see a
// partially written container.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path. The file is created on the
// first Append. A nil logger disables logging.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:   path,
		logger: logger.Named("store"),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns all records. A missing, empty or undecodable file yields an
// empty collection rather than an error.
func (s *FileStore) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("Results file is empty or corrupt, starting from an empty collection",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return []Record{}, nil
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Append adds records to the end of the collection.
func (s *FileStore) Append(records ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	existing = append(existing, records...)

	data, err := json.MarshalIndent(existing, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp results file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename results file: %w", err)
	}

	s.logger.Debug("Records appended",
		zap.String("path", s.path),
		zap.Int("added", len(records)),
		zap.Int("total", len(existing)),
	)
	return nil
}
