// Package testutil provides utilities for testing kinstall in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points every kinstall path at a per-test temp directory and
// returns that directory. Cleanup is handled by t.TempDir().
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("KINSTALL_CONFIG", filepath.Join(tmpDir, "config", "kinstall.lua"))
	t.Setenv("KINSTALL_DESTDIR", filepath.Join(tmpDir, "downloads"))

	dirs := []string{
		filepath.Join(tmpDir, "config"),
		filepath.Join(tmpDir, "downloads"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return tmpDir
}
