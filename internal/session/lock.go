// Package session serializes device jobs. Only one flash or wipe may run
// against a destination directory at a time, across processes.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	// LockFile is the lock file name inside the destination directory.
	LockFile = "device.lock"
	// GuardFile carries the OS file lock held for the life of a job. It is
	// never removed.
	GuardFile = "device.lock.flock"
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 30 * time.Minute
)

// ErrLockExists is returned while another job holds the lock.
var ErrLockExists = errors.New("device lock exists: another flash or wipe may be in progress")

// Lock represents a held device lock.
type Lock struct {
	path  string
	file  *os.File
	guard *flock.Flock
	JobID string
}

// Info is the metadata written into a lock file.
type Info struct {
	PID       int32
	JobID     string
	Timestamp time.Time
}

// AcquireLock attempts to acquire the device lock in dir for jobID. An empty
// jobID gets a fresh uuid. The guard file is locked first so only one
// process at a time inspects or replaces the metadata file, which is then
// created with O_CREATE|O_EXCL.
func AcquireLock(ctx context.Context, dir, jobID string) (lock *Lock, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	if jobID == "" {
		jobID = uuid.NewString()
	}

	guard := flock.New(filepath.Join(dir, GuardFile))
	locked, err := guard.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", guard.Path(), err)
	}
	if !locked {
		return nil, ErrLockExists
	}
	defer func() {
		if err != nil {
			guard.Unlock()
		}
	}()

	lockPath := filepath.Join(dir, LockFile)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(ctx, lockPath); !stale {
			return nil, ErrLockExists
		}
		// Remove stale lock and retry once
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\njob=%s\ntimestamp=%s\n",
		os.Getpid(), jobID, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{
		path:  lockPath,
		file:  file,
		guard: guard,
		JobID: jobID,
	}, nil
}

// Release releases the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		path := l.path
		l.path = ""
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	if l.guard != nil {
		guard := l.guard
		l.guard = nil
		if err := guard.Unlock(); err != nil {
			return fmt.Errorf("unlock %s: %w", guard.Path(), err)
		}
	}

	return nil
}

// ReadInfo parses the metadata of the lock file at path.
func ReadInfo(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &Info{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			pid, err := strconv.ParseInt(value, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parse pid: %w", err)
			}
			info.PID = int32(pid)
		case "job":
			info.JobID = value
		case "timestamp":
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("parse timestamp: %w", err)
			}
			info.Timestamp = ts
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

// isLockStale reports whether a lock is older than the threshold or its
// owning process no longer exists.
func isLockStale(ctx context.Context, lockPath string) (bool, error) {
	stat, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	if time.Since(stat.ModTime()) > StaleLockThreshold {
		return true, nil
	}

	info, err := ReadInfo(lockPath)
	if err != nil || info.PID <= 0 {
		// Unreadable metadata: trust the age check only.
		return false, err
	}

	exists, err := process.PidExistsWithContext(ctx, info.PID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}
