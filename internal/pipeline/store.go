package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store manages batch state on disk.
type Store struct {
	baseDir string // defaults to ~/.modernize/batches
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.modernize/batches, creating the
// directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".modernize", "batches")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// batchDir returns the directory path for a given batch.
func (s *Store) batchDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

// batchPath returns the path to the batch.json file for a batch.
func (s *Store) batchPath(id string) string {
	return filepath.Join(s.batchDir(id), "batch.json")
}

// resultPath returns the path to the result.json file for a batch.
func (s *Store) resultPath(id string) string {
	return filepath.Join(s.batchDir(id), "result.json")
}

// Create initialises a new batch on disk.
func (s *Store) Create(id string, repoRef string, artifactCount int) (*BatchState, error) {
	dir := s.batchDir(id)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("batch %s already exists", id)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	bs := &BatchState{
		ID:            id,
		RepoRef:       repoRef,
		Status:        "pending",
		ArtifactCount: artifactCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := WriteJSON(s.batchPath(id), bs); err != nil {
		return nil, fmt.Errorf("write batch.json: %w", err)
	}
	return bs, nil
}

// Get reads the batch state for an id.
func (s *Store) Get(id string) (*BatchState, error) {
	var bs BatchState
	if err := ReadJSON(s.batchPath(id), &bs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("batch %s not found", id)
		}
		return nil, err
	}
	return &bs, nil
}

// Update performs an atomic read-modify-write of the batch state.
func (s *Store) Update(id string, fn func(*BatchState)) error {
	bs, err := s.Get(id)
	if err != nil {
		return err
	}
	fn(bs)
	bs.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return WriteJSON(s.batchPath(id), bs)
}

// List returns all batches, optionally filtered by status. Pass "" for
// statusFilter to return all batches, newest first.
func (s *Store) List(statusFilter string) ([]BatchState, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	var batches []BatchState
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bs, err := s.Get(entry.Name())
		if err != nil {
			continue // skip broken entries
		}
		if statusFilter == "" || bs.Status == statusFilter {
			batches = append(batches, *bs)
		}
	}

	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt > batches[j].CreatedAt
	})
	return batches, nil
}

// Delete removes all data for a batch.
func (s *Store) Delete(id string) error {
	dir := s.batchDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("batch %s not found", id)
	}
	return os.RemoveAll(dir)
}

// SaveResult writes the final BatchResult for a batch.
func (s *Store) SaveResult(id string, result *BatchResult) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return WriteJSON(s.resultPath(id), result)
}

// GetResult reads the final BatchResult for a batch.
func (s *Store) GetResult(id string) (*BatchResult, error) {
	var result BatchResult
	if err := ReadJSON(s.resultPath(id), &result); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("result for batch %s not found", id)
		}
		return nil, err
	}
	return &result, nil
}
