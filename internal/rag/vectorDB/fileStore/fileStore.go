package fileStore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
)

// Store keeps the index snapshot in a single JSON file.
type Store struct {
	path   string
	logger *logger_i.Logger
}

func New(path string) *Store {
	return &Store{
		path:   path,
		logger: logger_i.NewLogger("index_file_store").With("path", path),
	}
}

// Save writes to a temp file next to the target and renames it, so a crash
// never leaves a truncated snapshot behind.
func (s *Store) Save(ctx context.Context, snap vectorDB.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved", "entries", len(snap.Entries), "documents", len(snap.Documents))
	return nil
}

func (s *Store) Load(ctx context.Context) (vectorDB.Snapshot, error) {
	var snap vectorDB.Snapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, vectorDB.ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	s.logger.Info("snapshot loaded", "entries", len(snap.Entries))
	return snap, nil
}

func (s *Store) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}
