// Package backup creates and restores file-level snapshots keyed by run and
// phase. A snapshot is the unit of rollback: restore writes back exactly the
// bytes captured at snapshot time, never a partial set.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrSnapshotExists is returned when a (run, phase) snapshot already exists.
	ErrSnapshotExists = errors.New("snapshot already exists for this run and phase")
	// ErrSnapshotNotFound is returned when restoring a snapshot that was never taken.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Snapshot records the pre-mutation content of a phase's files.
type Snapshot struct {
	RunID     string            `json:"run_id"`
	Phase     string            `json:"phase"`
	Files     []FileEntry       `json:"files"`
	CreatedAt time.Time         `json:"created_at"`
}

// FileEntry maps an original path to its stored copy.
type FileEntry struct {
	Path   string `json:"path"`
	Stored string `json:"stored"` // name inside the snapshot directory
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Store persists snapshots under a root directory:
// <root>/<runID>/<phase>/{manifest.json, 0000, 0001, ...}.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: dir, logger: logger}
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

func (s *Store) snapshotDir(runID, phase string) string {
	return filepath.Join(s.root, runID, phase)
}

// Has reports whether a snapshot exists for (runID, phase).
func (s *Store) Has(runID, phase string) bool {
	_, err := os.Stat(filepath.Join(s.snapshotDir(runID, phase), "manifest.json"))
	return err == nil
}

// Snapshot captures the current byte content of every file in files. At most
// one snapshot may exist per (runID, phase); a second call is an error. Any
// read or write failure aborts the whole snapshot and removes its directory,
// so a snapshot on disk is always complete.
func (s *Store) Snapshot(runID, phase string, files []string) (*Snapshot, error) {
	if s.Has(runID, phase) {
		return nil, fmt.Errorf("%w: run=%s phase=%s", ErrSnapshotExists, runID, phase)
	}

	dir := s.snapshotDir(runID, phase)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	snap := &Snapshot{
		RunID:     runID,
		Phase:     phase,
		CreatedAt: time.Now().UTC(),
	}

	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("reading %s for snapshot: %w", path, err)
		}
		stored := fmt.Sprintf("%04d", i)
		if err := os.WriteFile(filepath.Join(dir, stored), data, 0o644); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("writing snapshot copy of %s: %w", path, err)
		}
		sum := sha256.Sum256(data)
		snap.Files = append(snap.Files, FileEntry{
			Path:   path,
			Stored: stored,
			Size:   int64(len(data)),
			SHA256: hex.EncodeToString(sum[:]),
		})
	}

	manifest, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("encoding snapshot manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifest, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("writing snapshot manifest: %w", err)
	}

	s.logger.Debug("snapshot captured",
		zap.String("run_id", runID),
		zap.String("phase", phase),
		zap.Int("files", len(snap.Files)))

	return snap, nil
}

// Load reads the manifest for (runID, phase).
func (s *Store) Load(runID, phase string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.snapshotDir(runID, phase), "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run=%s phase=%s", ErrSnapshotNotFound, runID, phase)
		}
		return nil, fmt.Errorf("reading snapshot manifest: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot manifest: %w", err)
	}
	return &snap, nil
}

// Content returns the stored bytes of one file in a snapshot.
func (s *Store) Content(snap *Snapshot, path string) ([]byte, error) {
	for _, f := range snap.Files {
		if f.Path == path {
			return os.ReadFile(filepath.Join(s.snapshotDir(snap.RunID, snap.Phase), f.Stored))
		}
	}
	return nil, fmt.Errorf("%w: file %s not in snapshot", ErrSnapshotNotFound, path)
}

// Restore writes every file in the (runID, phase) snapshot back to its
// original path with its pre-phase byte content. Restores are all-or-nothing
// from the caller's perspective: the first write failure is returned and the
// run must treat file state as unknown.
func (s *Store) Restore(runID, phase string) error {
	snap, err := s.Load(runID, phase)
	if err != nil {
		return err
	}

	dir := s.snapshotDir(runID, phase)
	for _, f := range snap.Files {
		data, err := os.ReadFile(filepath.Join(dir, f.Stored))
		if err != nil {
			return fmt.Errorf("reading stored copy of %s: %w", f.Path, err)
		}
		if err := os.WriteFile(f.Path, data, 0o644); err != nil {
			return fmt.Errorf("restoring %s: %w", f.Path, err)
		}
	}

	s.logger.Info("snapshot restored",
		zap.String("run_id", runID),
		zap.String("phase", phase),
		zap.Int("files", len(snap.Files)))

	return nil
}

// Purge removes every snapshot belonging to a run.
func (s *Store) Purge(runID string) error {
	return os.RemoveAll(filepath.Join(s.root, runID))
}
