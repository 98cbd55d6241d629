package release

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
)

// FirmwareFile is the flashable package inside each device directory.
const FirmwareFile = "kboot.kfpkg"

// Extractor handles archive extraction
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Unpack extracts the firmware directory for dev from a verified artifact
// into destDir and returns the path of its kboot.kfpkg.
func (e *Extractor) Unpack(a *Artifact, destDir string, dev device.Device) (string, error) {
	if a == nil || !a.Usable() {
		return "", ErrUnverified
	}
	return e.ExtractFirmware(a.Path, destDir, dev)
}

// ExtractFirmware extracts every entry under <top>/maixpy_<dev>/ from a
// release zip into destDir, preserving the archive layout.
func (e *Extractor) ExtractFirmware(archivePath, destDir string, dev device.Device) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create dest dir: %w", err)
	}

	wantDir := device.FirmwareDir(dev)
	firmware := ""

	for _, f := range reader.File {
		// Layout: krux-v24.11.1/maixpy_amigo/kboot.kfpkg
		parts := strings.Split(path.Clean(f.Name), "/")
		if len(parts) < 2 || parts[1] != wantDir {
			continue
		}

		target, err := e.extractFile(f, destDir)
		if err != nil {
			return "", err
		}

		if len(parts) == 3 && parts[2] == FirmwareFile {
			firmware = target
		}
	}

	if firmware == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrFirmwareNotFound, wantDir, FirmwareFile)
	}

	return firmware, nil
}

// extractFile writes a single zip entry below destDir and returns its path.
func (e *Extractor) extractFile(f *zip.File, destDir string) (string, error) {
	// Security check: prevent path traversal
	joined := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(joined, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", f.Name)
	}

	// Symlinks already under destDir must not redirect the write elsewhere.
	target, err := securejoin.SecureJoin(destDir, filepath.FromSlash(f.Name))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", f.Name, err)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0755); err != nil {
			return "", fmt.Errorf("create directory %s: %w", target, err)
		}
		return target, nil
	}

	if !f.Mode().IsRegular() {
		// Skip symlinks and other special entries
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer src.Close()

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, src); err != nil {
		outFile.Close()
		return "", fmt.Errorf("write file %s: %w", target, err)
	}

	if err := outFile.Close(); err != nil {
		return "", fmt.Errorf("close file %s: %w", target, err)
	}

	return target, nil
}
