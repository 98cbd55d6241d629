package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestAcquireLock(t *testing.T) {
	t.Run("creates lock file", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), dir, "job-1")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		if lock.path != filepath.Join(dir, LockFile) {
			t.Errorf("unexpected lock path %s", lock.path)
		}
		if _, err := os.Stat(filepath.Join(dir, LockFile)); err != nil {
			t.Errorf("lock file not created: %v", err)
		}
	})

	t.Run("prevents concurrent locks", func(t *testing.T) {
		dir := t.TempDir()

		lock1, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}
		defer lock1.Release()

		_, err = AcquireLock(context.Background(), dir, "")
		if !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := AcquireLock(ctx, t.TempDir(), ""); err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("creates directory if needed", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "krux")

		lock, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Error("directory not created")
		}
	})

	t.Run("writes lock metadata", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		defer lock.Release()

		if lock.JobID == "" {
			t.Error("expected a generated job id")
		}

		info, err := ReadInfo(filepath.Join(dir, LockFile))
		if err != nil {
			t.Fatalf("ReadInfo failed: %v", err)
		}
		if info.PID != int32(os.Getpid()) {
			t.Errorf("pid = %d, want %d", info.PID, os.Getpid())
		}
		if info.JobID != lock.JobID {
			t.Errorf("job = %q, want %q", info.JobID, lock.JobID)
		}
		if time.Since(info.Timestamp) > time.Minute {
			t.Errorf("unexpected timestamp %v", info.Timestamp)
		}
	})
}

func TestLockRelease(t *testing.T) {
	t.Run("removes lock file", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}

		if err := lock.Release(); err != nil {
			t.Fatalf("Release failed: %v", err)
		}

		if _, err := os.Stat(filepath.Join(dir, LockFile)); !os.IsNotExist(err) {
			t.Error("lock file should be removed after release")
		}
	})

	t.Run("allows new lock after release", func(t *testing.T) {
		dir := t.TempDir()

		lock1, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}
		lock1.Release()

		lock2, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("second AcquireLock should succeed: %v", err)
		}
		defer lock2.Release()
	})

	t.Run("is idempotent", func(t *testing.T) {
		lock, err := AcquireLock(context.Background(), t.TempDir(), "")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}

		if err := lock.Release(); err != nil {
			t.Fatalf("first Release failed: %v", err)
		}
		if err := lock.Release(); err != nil {
			t.Fatalf("second Release should not error: %v", err)
		}
	})
}

func TestLockGuard(t *testing.T) {
	t.Run("held guard blocks acquisition", func(t *testing.T) {
		dir := t.TempDir()
		other := flock.New(filepath.Join(dir, GuardFile))
		locked, err := other.TryLock()
		if err != nil || !locked {
			t.Fatalf("TryLock() = %v, %v", locked, err)
		}
		defer other.Unlock()

		if _, err := AcquireLock(context.Background(), dir, ""); !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, LockFile)); !os.IsNotExist(err) {
			t.Error("metadata written without holding the guard")
		}
	})

	t.Run("guard released with the lock", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		if err := lock.Release(); err != nil {
			t.Fatalf("Release failed: %v", err)
		}

		other := flock.New(filepath.Join(dir, GuardFile))
		locked, err := other.TryLock()
		if err != nil || !locked {
			t.Fatalf("guard still held after release: %v, %v", locked, err)
		}
		other.Unlock()
	})

	t.Run("guard released when metadata is held", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, LockFile), []byte("garbage"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := AcquireLock(context.Background(), dir, ""); !errors.Is(err, ErrLockExists) {
			t.Fatalf("expected ErrLockExists, got %v", err)
		}

		other := flock.New(filepath.Join(dir, GuardFile))
		locked, err := other.TryLock()
		if err != nil || !locked {
			t.Fatalf("guard leaked after failed acquisition: %v, %v", locked, err)
		}
		other.Unlock()
	})
}

func TestStaleLockHandling(t *testing.T) {
	writeLock := func(t *testing.T, dir string, pid int) string {
		t.Helper()
		lockPath := filepath.Join(dir, LockFile)
		data := fmt.Sprintf("pid=%d\njob=old\ntimestamp=2020-01-01T00:00:00Z\n", pid)
		if err := os.WriteFile(lockPath, []byte(data), 0600); err != nil {
			t.Fatalf("failed to create lock: %v", err)
		}
		return lockPath
	}

	t.Run("removes lock past the age threshold", func(t *testing.T) {
		dir := t.TempDir()
		lockPath := writeLock(t, dir, os.Getpid())

		staleTime := time.Now().Add(-StaleLockThreshold - time.Minute)
		if err := os.Chtimes(lockPath, staleTime, staleTime); err != nil {
			t.Fatalf("failed to set stale time: %v", err)
		}

		lock, err := AcquireLock(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("AcquireLock should succeed with stale lock: %v", err)
		}
		defer lock.Release()
	})

	t.Run("fails for fresh lock held by live process", func(t *testing.T) {
		dir := t.TempDir()
		writeLock(t, dir, os.Getpid())

		if _, err := AcquireLock(context.Background(), dir, ""); !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})

	t.Run("fails for fresh lock with unreadable metadata", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, LockFile), []byte("garbage"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := AcquireLock(context.Background(), dir, ""); !errors.Is(err, ErrLockExists) {
			t.Errorf("expected ErrLockExists, got %v", err)
		}
	})
}
