package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// PublicKeyName is the signer key file name served and written by fixtures.
const PublicKeyName = "selfcustody.pem"

// ReleaseFixture is an in-memory signed release: the zip archive, its
// sha256sum file, a detached ECDSA signature and the PEM signer key.
type ReleaseFixture struct {
	Version   string
	Archive   []byte
	Checksum  []byte
	Signature []byte
	PublicKey []byte
	Firmware  map[string][]byte // device -> kboot.kfpkg contents
}

// ArchiveName returns the archive file name.
func (f *ReleaseFixture) ArchiveName() string {
	return fmt.Sprintf("krux-%s.zip", f.Version)
}

// WriteFiles writes the archive, checksum, signature and public key into dir
// under the names a release download uses and returns the archive path.
func (f *ReleaseFixture) WriteFiles(t *testing.T, dir string) string {
	t.Helper()

	archive := filepath.Join(dir, f.ArchiveName())
	files := map[string][]byte{
		archive:                           f.Archive,
		archive + ".sha256.txt":           f.Checksum,
		archive + ".sig":                  f.Signature,
		filepath.Join(dir, PublicKeyName): f.PublicKey,
	}
	for path, data := range files {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return archive
}

// NewReleaseFixture builds a release containing firmware for each device.
func NewReleaseFixture(t *testing.T, version string, devices ...string) *ReleaseFixture {
	t.Helper()

	f := &ReleaseFixture{
		Version:  version,
		Firmware: make(map[string][]byte),
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	top := fmt.Sprintf("krux-%s", version)
	for _, dev := range devices {
		content := []byte(fmt.Sprintf("kfpkg for %s %s", dev, version))
		f.Firmware[dev] = content

		files := map[string][]byte{
			fmt.Sprintf("%s/maixpy_%s/kboot.kfpkg", top, dev):  content,
			fmt.Sprintf("%s/maixpy_%s/firmware.bin", top, dev): []byte("firmware " + dev),
		}
		for name, data := range files {
			w, err := zw.Create(name)
			if err != nil {
				t.Fatalf("create zip entry: %v", err)
			}
			if _, err := w.Write(data); err != nil {
				t.Fatalf("write zip entry: %v", err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	f.Archive = buf.Bytes()

	sum := sha256.Sum256(f.Archive)
	f.Checksum = []byte(fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), f.ArchiveName()))

	f.PublicKey, f.Signature = SignECDSA(t, f.Archive)
	return f
}

// SignECDSA signs data with a fresh P-256 key and returns the PEM public key
// and the ASN.1 signature over SHA-256(data).
func SignECDSA(t *testing.T, data []byte) (pubPEM, sig []byte) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	digest := sha256.Sum256(data)
	sig, err = ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return pubPEM, sig
}

// ReleaseServer serves a fixture the way GitHub serves release assets.
type ReleaseServer struct {
	*httptest.Server
	Fixture *ReleaseFixture

	mu   sync.Mutex
	hits map[string]int
}

// ServeRelease starts an httptest server for f. Paths:
// /download/{version}/krux-{version}.zip[.sha256.txt|.sig] and /selfcustody.pem.
func ServeRelease(t *testing.T, f *ReleaseFixture) *ReleaseServer {
	t.Helper()

	rs := &ReleaseServer{Fixture: f, hits: make(map[string]int)}
	prefix := fmt.Sprintf("/download/%s/%s", f.Version, f.ArchiveName())

	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.hits[r.URL.Path]++
		rs.mu.Unlock()

		var body []byte
		switch {
		case r.URL.Path == prefix:
			body = f.Archive
		case r.URL.Path == prefix+".sha256.txt":
			body = f.Checksum
		case r.URL.Path == prefix+".sig":
			body = f.Signature
		case strings.HasSuffix(r.URL.Path, "/"+PublicKeyName):
			body = f.PublicKey
		default:
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	t.Cleanup(rs.Close)

	return rs
}

// BaseURL returns the release base URL to configure.
func (rs *ReleaseServer) BaseURL() string {
	return rs.URL + "/download"
}

// PublicKeyURL returns the signer key URL to configure.
func (rs *ReleaseServer) PublicKeyURL() string {
	return rs.URL + "/" + PublicKeyName
}

// Hits returns how many times path was requested.
func (rs *ReleaseServer) Hits(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[path]
}
