package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/semaphore"
)

// Lock enforces one active run per project root. In-process exclusivity via
// a weighted semaphore, cross-process via an exclusively-created lockfile.
// Two concurrent runs against the same root would corrupt each other's
// snapshots and history, so Acquire must be held for the run's lifetime.
type Lock struct {
	sem  *semaphore.Weighted
	path string
}

// NewLock creates a lock for the given project root.
func NewLock(root string) *Lock {
	return &Lock{
		sem:  semaphore.NewWeighted(1),
		path: filepath.Join(root, ".checkmend.lock"),
	}
}

// Acquire takes the run lock or returns ErrRunActive when another run holds
// it. It does not block waiting for the other run to finish.
func (l *Lock) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.sem.TryAcquire(1) {
		return ErrRunActive
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		l.sem.Release(1)
		if os.IsExist(err) {
			return fmt.Errorf("%w: lockfile %s", ErrRunActive, l.path)
		}
		return fmt.Errorf("creating lockfile: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return f.Close()
}

// Release drops the run lock.
func (l *Lock) Release() error {
	defer l.sem.Release(1)
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lockfile: %w", err)
	}
	return nil
}
