// Package resources owns the fixed-name OS resources shared between the
// harness and the application under test: POSIX message queue files and the
// artifact files the application reads and writes.
//
// A Reservation removes stale copies when a resource is acquired and removes
// it again on ReleaseAll. Removal is idempotent; a resource that is already
// gone is not an error. An advisory lock file keeps two harness runs from
// sharing the same working directory.
package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"ipcrunner/pkg/logging"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gofrs/flock"
)

// ErrLocked is returned by Reserve when another run holds the lock file.
var ErrLocked = errors.New("another ipcrunner run holds the lock")

// Kind classifies a resource for logging.
type Kind string

const (
	KindQueue    Kind = "queue"
	KindArtifact Kind = "artifact"
)

// Resource is one path, or a doublestar glob pattern when Glob is set.
type Resource struct {
	Kind Kind
	Path string
	Glob bool
}

func (r Resource) String() string {
	return fmt.Sprintf("%s %s", r.Kind, r.Path)
}

// Queue returns the resource for a message queue file.
func Queue(path string) Resource {
	return Resource{Kind: KindQueue, Path: path}
}

// Artifact returns the resource for an artifact file.
func Artifact(path string) Resource {
	return Resource{Kind: KindArtifact, Path: path}
}

// ArtifactGlob returns a resource covering every artifact matching pattern.
func ArtifactGlob(pattern string) Resource {
	return Resource{Kind: KindArtifact, Path: pattern, Glob: true}
}

// Reservation is the set of resources owned by one run.
type Reservation struct {
	mu       sync.Mutex
	lock     *flock.Flock
	owned    []Resource
	released bool
}

// Reserve takes the advisory lock at lockPath. It fails with ErrLocked when
// another process holds it. An empty lockPath reserves without locking.
func Reserve(lockPath string) (*Reservation, error) {
	r := &Reservation{}
	if lockPath == "" {
		return r, nil
	}

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}
	if !ok {
		_ = lock.Close()
		return nil, fmt.Errorf("%s: %w", lockPath, ErrLocked)
	}

	r.lock = lock
	logging.Debug("Resources", "Acquired lock %s", lockPath)
	return r, nil
}

// Acquire removes stale copies of res and registers them for removal on
// ReleaseAll.
func (r *Reservation) Acquire(res ...Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return errors.New("reservation already released")
	}
	r.owned = append(r.owned, res...)
	return Remove(res...)
}

// Clear removes stale copies of res without registering them, so whatever
// the run writes survives ReleaseAll.
func (r *Reservation) Clear(res ...Resource) error {
	return Remove(res...)
}

// ReleaseAll removes every acquired resource and drops the lock. Calling it
// more than once is a no-op.
func (r *Reservation) ReleaseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil
	}
	r.released = true

	err := Remove(r.owned...)
	r.owned = nil

	if r.lock != nil {
		if uerr := r.lock.Unlock(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to unlock %s: %w", r.lock.Path(), uerr))
		}
		_ = r.lock.Close()
		logging.Debug("Resources", "Released lock %s", r.lock.Path())
	}
	return err
}

// Released reports whether ReleaseAll has run.
func (r *Reservation) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Remove deletes every resource, expanding globs. Missing paths are
// ignored; other failures are joined and returned after all removals were
// attempted.
func Remove(res ...Resource) error {
	var errs []error
	for _, rs := range res {
		paths := []string{rs.Path}
		if rs.Glob {
			matches, err := doublestar.FilepathGlob(rs.Path)
			if err != nil {
				errs = append(errs, fmt.Errorf("bad pattern %q: %w", rs.Path, err))
				continue
			}
			paths = matches
		}
		for _, p := range paths {
			if err := os.Remove(p); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				errs = append(errs, fmt.Errorf("failed to remove %s %s: %w", rs.Kind, p, err))
				continue
			}
			logging.Debug("Resources", "Removed %s %s", rs.Kind, p)
		}
	}
	return errors.Join(errs...)
}
