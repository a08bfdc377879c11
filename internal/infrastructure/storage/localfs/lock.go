package localfs

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFile is created inside the data directory while an ingest runs.
const LockFile = ".ingest.lock"

var ErrIngestRunning = errors.New("another ingest is running")

// Lock takes the single-writer ingest lock for the corpus directory, polling
// until timeout. The returned func releases it.
func (c *Corpus) Lock(timeout time.Duration) (func(), error) {
	path := filepath.Join(c.basePath, LockFile)
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("acquire ingest lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if !time.Now().Before(deadline) {
			return func() {}, fmt.Errorf("%w (lock: %s)", ErrIngestRunning, path)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
