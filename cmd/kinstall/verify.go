package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/logging"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
)

// runVerify handles the `kinstall verify <archive>` subcommand
func runVerify(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.Help {
		printVerifyHelp()
		return nil
	}
	if len(f.Args) != 1 {
		return fmt.Errorf("usage: kinstall verify [--checksum file] [--signature file] [--pubkey file] <archive.zip>")
	}

	level := "warn"
	if f.Debug {
		level = "debug"
	}
	logger := logging.Setup(level)

	a, err := artifactFor(f)
	if err != nil {
		return err
	}

	verifier := release.NewVerifier(release.WithVerifierLogger(logger))
	verr := verifier.Verify(a)
	printResults(os.Stdout, a.Results())
	if verr != nil {
		return verr
	}
	fmt.Printf("%s is authentic\n", a.Path)
	return nil
}

// artifactFor resolves the companion files of an archive, defaulting to the
// names the release downloads use next to it.
func artifactFor(f *cliFlags) (*release.Artifact, error) {
	archive := f.Args[0]
	if _, err := os.Stat(archive); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	checksum := f.Checksum
	if checksum == "" {
		checksum = archive + ".sha256.txt"
	}
	signature := f.Signature
	if signature == "" {
		signature = archive + ".sig"
	}
	pubkey := f.PubKey
	if pubkey == "" {
		pubkey = filepath.Join(filepath.Dir(archive), path.Base(release.DefaultPublicKeyURL))
	}

	for _, p := range []string{checksum, signature, pubkey} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("missing %s (download it or pass its path)", p)
		}
	}

	return release.NewArtifact(archive, checksum, signature, pubkey)
}

func printResults(w io.Writer, results []release.VerificationResult) {
	for _, r := range results {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", mark, r.Stage, r.Method)
	}
}

func printVerifyHelp() {
	fmt.Println("Usage: kinstall verify [options] <archive.zip>")
	fmt.Println()
	fmt.Println("Checks the archive's SHA-256 checksum, then its detached signature.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --checksum <file>   Checksum file (default <archive>.sha256.txt)")
	fmt.Println("  --signature <file>  Signature file (default <archive>.sig)")
	fmt.Println("  --pubkey <file>     Signer public key (default selfcustody.pem next to the archive)")
}
