package release

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"
)

const opensslTimeout = 30 * time.Second

// errUnsupportedKey marks a PEM key the standard library cannot parse.
var errUnsupportedKey = errors.New("unsupported public key")

// verifySignatureFile picks the verification method from the key format.
func (v *Verifier) verifySignatureFile(artifactPath, signaturePath, keyPath string) (VerificationMethod, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return VerificationNone, fmt.Errorf("read public key: %w", err)
	}

	switch {
	case bytes.Contains(keyData, []byte("BEGIN PGP PUBLIC KEY BLOCK")):
		return VerificationGPG, verifyGPG(artifactPath, signaturePath, keyData)

	case bytes.Contains(keyData, []byte("-----BEGIN")):
		err := verifyPEM(artifactPath, signaturePath, keyData)
		if errors.Is(err, errUnsupportedKey) {
			v.logger.Debug("pem_key_unsupported_falling_back_to_openssl", "key", keyPath, "error", err)
			return VerificationOpenSSL, v.verifyOpenSSL(artifactPath, signaturePath, keyPath)
		}
		return VerificationPEM, err

	default:
		// Binary OpenPGP keyring
		return VerificationGPG, verifyGPG(artifactPath, signaturePath, keyData)
	}
}

// verifyPEM verifies a detached signature over SHA-256 of the artifact.
func verifyPEM(artifactPath, signaturePath string, keyData []byte) error {
	pub, err := cryptoutils.UnmarshalPEMToPublicKey(keyData)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnsupportedKey, err)
	}

	verifier, err := signature.LoadVerifier(pub, crypto.SHA256)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnsupportedKey, err)
	}

	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer artifact.Close()

	if err := verifier.VerifySignature(bytes.NewReader(sig), artifact); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// verifyGPG verifies a detached OpenPGP signature (armored or binary).
func verifyGPG(artifactPath, signaturePath string, keyData []byte) error {
	keyring, err := readKeyring(keyData)
	if err != nil {
		return err
	}

	artifactFile, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer artifactFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Verify signature (try armored first)
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, artifactFile, sigFile, nil)
	if err != nil {
		if _, serr := artifactFile.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewind artifact: %w", serr)
		}
		if _, serr := sigFile.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewind signature: %w", serr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, artifactFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	return nil
}

// readKeyring parses an armored or binary OpenPGP keyring
func readKeyring(keyData []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(keyData))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(keyData))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// verifyOpenSSL shells out to openssl for keys on curves Go does not support.
func (v *Verifier) verifyOpenSSL(artifactPath, signaturePath, keyPath string) error {
	bin, err := exec.LookPath(v.opensslPath)
	if err != nil {
		return fmt.Errorf("openssl is required to verify this key: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opensslTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "sha256", "-verify", keyPath, "-signature", signaturePath, artifactPath)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return fmt.Errorf("openssl: %s: %w", output, err)
	}
	if !strings.Contains(output, "Verified OK") {
		return fmt.Errorf("openssl: unexpected output: %s", output)
	}
	return nil
}
