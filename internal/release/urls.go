package release

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// DefaultBaseURL is where Krux publishes release assets.
	DefaultBaseURL = "https://github.com/selfcustody/krux/releases/download"
	// DefaultPublicKeyURL is the signer key for official releases.
	DefaultPublicKeyURL = "https://raw.githubusercontent.com/selfcustody/krux/main/selfcustody.pem"
)

// NormalizeVersion adds the leading "v" when missing and validates the result.
// The release tag is kept as written so "v24.03.0" stays zero-padded.
func NormalizeVersion(version string) (string, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if v == "" {
		return "", fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(v); err != nil {
		return "", fmt.Errorf("invalid version %s: %w", version, err)
	}
	// Release tags always carry major.minor.patch.
	core, _, _ := strings.Cut(strings.SplitN(v, "+", 2)[0], "-")
	if strings.Count(core, ".") != 2 {
		return "", fmt.Errorf("invalid version %s: want major.minor.patch", version)
	}
	return "v" + v, nil
}

// ArchiveName returns the release archive file name for a version.
// Pattern: krux-{version}.zip
func ArchiveName(version string) string {
	return fmt.Sprintf("krux-%s.zip", version)
}

// ConstructDownloadInfo builds the release, checksum, signature and public key URLs.
// Pattern: {base}/{version}/krux-{version}.zip[.sha256.txt|.sig]
func ConstructDownloadInfo(baseURL, publicKeyURL, version string) (*DownloadInfo, error) {
	v, err := NormalizeVersion(version)
	if err != nil {
		return nil, err
	}

	if err := validateURL(baseURL); err != nil {
		return nil, fmt.Errorf("release base URL: %w", err)
	}
	if err := validateURL(publicKeyURL); err != nil {
		return nil, fmt.Errorf("public key URL: %w", err)
	}

	base := fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), v)
	archive := ArchiveName(v)

	return &DownloadInfo{
		Version:      v,
		URL:          fmt.Sprintf("%s/%s", base, archive),
		ChecksumURL:  fmt.Sprintf("%s/%s.sha256.txt", base, archive),
		SignatureURL: fmt.Sprintf("%s/%s.sig", base, archive),
		PublicKeyURL: publicKeyURL,
	}, nil
}

// validateURL accepts absolute http and https URLs.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
