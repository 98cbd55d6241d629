package testutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	tmpDir := testutil.SetupTestEnv(t)

	configPath := os.Getenv("KINSTALL_CONFIG")
	if configPath == "" {
		t.Fatal("KINSTALL_CONFIG not set")
	}
	destDir := os.Getenv("KINSTALL_DESTDIR")
	if destDir == "" {
		t.Fatal("KINSTALL_DESTDIR not set")
	}

	for _, p := range []string{configPath, destDir} {
		if !strings.HasPrefix(p, tmpDir) {
			t.Errorf("%s is not under the test directory %s", p, tmpDir)
		}
	}

	if _, err := os.Stat(filepath.Dir(configPath)); err != nil {
		t.Errorf("config directory not created: %v", err)
	}
	if _, err := os.Stat(destDir); err != nil {
		t.Errorf("download directory not created: %v", err)
	}
}

func TestReleaseServer(t *testing.T) {
	fixture := testutil.NewReleaseFixture(t, "v1.2.3", "amigo")
	srv := testutil.ServeRelease(t, fixture)

	resp, err := srv.Client().Get(srv.BaseURL() + "/v1.2.3/krux-v1.2.3.zip")
	if err != nil {
		t.Fatalf("GET archive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.ContentLength != int64(len(fixture.Archive)) {
		t.Errorf("content length = %d, want %d", resp.ContentLength, len(fixture.Archive))
	}
	if got := srv.Hits("/download/v1.2.3/krux-v1.2.3.zip"); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}

	resp, err = srv.Client().Get(srv.URL + "/download/v9.9.9/krux-v9.9.9.zip")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
