// Package release downloads, verifies and unpacks Krux firmware releases.
//
// # Security Model
//
// Firmware is never unpacked or written to a device unless the release
// archive passes both verification stages:
//   - Checksum: the SHA-256 of the archive must match the published
//     .sha256.txt file (case-insensitive hex)
//   - Signature: the detached .sig file must verify against the signer's
//     public key
//
// # Signature Formats
//
// The signer key decides how the detached signature is checked:
//   - PEM public keys (ECDSA, RSA, Ed25519) are loaded with sigstore's
//     cryptoutils and verified with a sigstore signature.Verifier
//   - OpenPGP keyrings (armored or binary) use ProtonMail's openpgp fork
//   - PEM keys on curves the Go standard library cannot parse (Krux signs
//     with secp256k1) are verified by the openssl executable
//
// # Usage
//
//	info, err := release.ConstructDownloadInfo(release.DefaultBaseURL, release.DefaultPublicKeyURL, "v24.11.1")
//	if err != nil {
//	    return err
//	}
//
//	d := release.NewDownloader(release.WithCompletionDelay(0))
//	s := release.NewSession(info.URL, filepath.Join(destdir, info.ArchiveName()), release.SessionHooks{
//	    Progress: func(done, total int64) { fmt.Printf("%d/%d\n", done, total) },
//	})
//	if err := d.Start(ctx, s); err != nil {
//	    return err
//	}
//
// # Architecture
//
//   - Downloader: streaming HTTP download with progress and a completion Trigger
//   - Verifier: checksum stage then signature stage
//   - Extractor: zip extraction of the per-device firmware directory
//   - urls.go: release URL construction
package release
