package release

import (
	"fmt"
	"sync"
)

// Stage names a verification stage.
type Stage string

const (
	// StageChecksum compares the archive's SHA-256 with the published checksum.
	StageChecksum Stage = "checksum"
	// StageSignature checks the detached signature against the signer key.
	StageSignature Stage = "signature"
)

// VerificationMethod indicates how a stage was verified
type VerificationMethod int

const (
	// VerificationNone indicates no verification (should never happen in production)
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 indicates the checksum stage
	VerificationSHA256
	// VerificationPEM indicates a PEM public key checked with sigstore
	VerificationPEM
	// VerificationGPG indicates an OpenPGP keyring
	VerificationGPG
	// VerificationOpenSSL indicates the openssl executable was used
	VerificationOpenSSL
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationSHA256:
		return "SHA256"
	case VerificationPEM:
		return "PEM"
	case VerificationGPG:
		return "GPG"
	case VerificationOpenSSL:
		return "OpenSSL"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// VerificationResult contains the outcome of a verification stage
type VerificationResult struct {
	Stage   Stage
	Method  VerificationMethod
	Success bool
	Error   error
}

// DownloadInfo contains the URLs needed to fetch and verify one release
type DownloadInfo struct {
	Version      string
	URL          string // release archive
	ChecksumURL  string // <archive>.sha256.txt
	SignatureURL string // <archive>.sig
	PublicKeyURL string // signer public key
}

// ArchiveName returns the file name of the release archive.
func (i *DownloadInfo) ArchiveName() string {
	return ArchiveName(i.Version)
}

// Artifact is a downloaded release archive together with the files needed to
// verify it. It is verified exactly once; after a successful verification it
// is immutable and usable downstream.
type Artifact struct {
	Path          string
	ChecksumPath  string
	SignaturePath string
	PublicKeyPath string

	once    sync.Once
	mu      sync.Mutex
	results []VerificationResult
	err     error
	done    bool
}

// NewArtifact creates an artifact from the local paths of its four files.
func NewArtifact(path, checksumPath, signaturePath, publicKeyPath string) (*Artifact, error) {
	if path == "" {
		return nil, fmt.Errorf("artifact path is required")
	}
	if checksumPath == "" {
		return nil, fmt.Errorf("checksum path is required")
	}
	if signaturePath == "" {
		return nil, fmt.Errorf("signature path is required")
	}
	if publicKeyPath == "" {
		return nil, fmt.Errorf("public key path is required")
	}
	return &Artifact{
		Path:          path,
		ChecksumPath:  checksumPath,
		SignaturePath: signaturePath,
		PublicKeyPath: publicKeyPath,
	}, nil
}

// Usable reports whether both verification stages passed.
func (a *Artifact) Usable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done && a.err == nil
}

// Results returns the per-stage results recorded by verification.
func (a *Artifact) Results() []VerificationResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]VerificationResult, len(a.results))
	copy(out, a.results)
	return out
}

func (a *Artifact) record(results []VerificationResult, err error) {
	a.mu.Lock()
	a.results = results
	a.err = err
	a.done = true
	a.mu.Unlock()
}

func (a *Artifact) outcome() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
