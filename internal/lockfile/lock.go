// Package lockfile keeps two exports from writing into the same output
// directory at once.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FileName is the lock file created inside a locked directory.
const FileName = ".trackport.lock"

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("output directory is locked by another export")

// ErrNotHeld is returned by ReadLockInfo when nobody holds the lock.
var ErrNotHeld = errors.New("lock is not held")

// LockInfo is written into the lock file so a blocked run can say who holds
// it.
type LockInfo struct {
	PID       int       `json:"pid"`
	ProjectID string    `json:"project_id,omitempty"`
	Version   string    `json:"version,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held directory lock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes the lock on dir without blocking, creating dir if needed.
// If another process holds it the error wraps ErrLockBusy.
func Acquire(dir string, info LockInfo) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)
	// #nosec G304 - path is built from the output directory
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := flockExclusiveNonBlock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			if holder, rerr := ReadLockInfo(dir); rerr == nil && holder.PID != 0 {
				return nil, fmt.Errorf("%w (pid %d, started %s)", ErrLockBusy, holder.PID, holder.StartedAt.Format(time.RFC3339))
			}
			return nil, ErrLockBusy
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	if info.PID == 0 {
		info.PID = os.Getpid()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	if err := writeInfo(f, info); err != nil {
		_ = flockUnlock(f)
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f, path: path}, nil
}

// AcquireWait is Acquire that keeps polling with exponential backoff while
// the lock is busy, for at most maxWait. A zero maxWait tries once.
func AcquireWait(ctx context.Context, dir string, info LockInfo, maxWait time.Duration) (*Lock, error) {
	if maxWait <= 0 {
		return Acquire(dir, info)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = maxWait

	var lock *Lock
	err := backoff.Retry(func() error {
		l, err := Acquire(dir, info)
		if err != nil {
			if errors.Is(err, ErrLockBusy) {
				return err
			}
			return backoff.Permanent(err)
		}
		lock = l
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func writeInfo(f *os.File, info LockInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to write lock info: %w", err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write lock info: %w", err)
	}
	return f.Sync()
}

// Release clears the holder information and unlocks. The lock file itself
// stays in place: every process must contend for the same inode, which a
// delete followed by a fresh create would break. It is safe to call on a nil
// lock and more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.f.Truncate(0)
	if uerr := flockUnlock(l.f); err == nil {
		err = uerr
	}
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// ReadLockInfo reads the holder information from dir's lock file. A lock
// file left by a released lock is empty and reports ErrNotHeld.
func ReadLockInfo(dir string) (*LockInfo, error) {
	// #nosec G304 - path is built from the output directory
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotHeld
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file: %w", err)
	}
	return &info, nil
}
