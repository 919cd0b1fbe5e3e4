package store

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockDataDir takes an exclusive lock on <dir>/engine.lock so two engines
// never write the same database. Release with Unlock.
func LockDataDir(dir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(dir, "engine.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock data dir: %s is in use by another engine", dir)
	}
	return fl, nil
}
