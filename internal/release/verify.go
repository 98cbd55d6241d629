package release

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Verifier runs the two verification stages over release artifacts
type Verifier struct {
	opensslPath string
	logger      *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithOpenSSL sets the openssl executable used for keys Go cannot parse.
func WithOpenSSL(path string) VerifierOption {
	return func(v *Verifier) { v.opensslPath = path }
}

// WithVerifierLogger sets the logger.
func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier creates a new verifier
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{opensslPath: "openssl"}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Verify runs the checksum stage then the signature stage. The outcome is
// recorded on the artifact and later calls return the same result without
// re-running either stage. A failure is a *VerificationError naming the stage.
func (v *Verifier) Verify(a *Artifact) error {
	if a == nil {
		return fmt.Errorf("artifact is nil")
	}

	a.once.Do(func() {
		var results []VerificationResult

		checksum, err := v.VerifyChecksum(a)
		if checksum != nil {
			results = append(results, *checksum)
		}
		if err != nil {
			a.record(results, err)
			return
		}

		sig, err := v.VerifySignature(a)
		if sig != nil {
			results = append(results, *sig)
		}
		a.record(results, err)
	})

	return a.outcome()
}

// VerifyChecksum compares the archive's SHA-256 with the checksum file.
func (v *Verifier) VerifyChecksum(a *Artifact) (*VerificationResult, error) {
	result, err := v.verifySHA256(a.Path, a.ChecksumPath)
	if err != nil {
		v.logger.Error("checksum_verification_failed", "path", a.Path, "error", err)
		return result, &VerificationError{Stage: StageChecksum, Path: a.Path, Err: err}
	}
	v.logger.Info("checksum_verified", "path", a.Path)
	return result, nil
}

// VerifySignature checks the detached signature with the signer public key.
func (v *Verifier) VerifySignature(a *Artifact) (*VerificationResult, error) {
	method, err := v.verifySignatureFile(a.Path, a.SignaturePath, a.PublicKeyPath)
	result := &VerificationResult{
		Stage:   StageSignature,
		Method:  method,
		Success: err == nil,
		Error:   err,
	}
	if err != nil {
		v.logger.Error("signature_verification_failed", "path", a.Path, "method", method.String(), "error", err)
		return result, &VerificationError{Stage: StageSignature, Path: a.Path, Err: err}
	}
	v.logger.Info("signature_verified", "path", a.Path, "method", method.String())
	return result, nil
}

// verifySHA256 verifies a file using SHA256 checksum
func (v *Verifier) verifySHA256(artifactPath, checksumPath string) (*VerificationResult, error) {
	fail := func(err error) (*VerificationResult, error) {
		return &VerificationResult{
			Stage:   StageChecksum,
			Method:  VerificationSHA256,
			Success: false,
			Error:   err,
		}, err
	}

	actualChecksum, err := calculateSHA256(artifactPath)
	if err != nil {
		return fail(fmt.Errorf("calculate checksum: %w", err))
	}

	expectedChecksum, err := findChecksum(checksumPath, filepath.Base(artifactPath))
	if err != nil {
		return fail(fmt.Errorf("find checksum: %w", err))
	}

	// Compare checksums (case-insensitive)
	if !strings.EqualFold(actualChecksum, expectedChecksum) {
		return fail(fmt.Errorf("checksum mismatch:\nactual:   %s\nexpected: %s",
			actualChecksum, expectedChecksum))
	}

	return &VerificationResult{
		Stage:   StageChecksum,
		Method:  VerificationSHA256,
		Success: true,
	}, nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum file.
// Accepts sha256sum format ("abc123  krux-v1.0.0.zip") and a bare digest.
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	var bare []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		switch len(parts) {
		case 0:
			continue
		case 1:
			bare = append(bare, parts[0])
			continue
		}

		// "*name" marks binary mode in sha256sum output
		checksumFilename := strings.TrimPrefix(parts[1], "*")
		if checksumFilename == filename || filepath.Base(checksumFilename) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	if len(bare) == 1 {
		if !isHexDigest(bare[0]) {
			return "", fmt.Errorf("malformed checksum %q", bare[0])
		}
		return bare[0], nil
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

func isHexDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
