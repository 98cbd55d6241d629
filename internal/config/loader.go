package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPath returns $KINSTALL_CONFIG, or kinstall/kinstall.lua under the
// user config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "kinstall", "kinstall.lua"), nil
}

// Loader resolves and parses the effective configuration.
type Loader struct {
	parser *Parser
}

// NewLoader creates a loader that evaluates files with parser.
func NewLoader(parser *Parser) *Loader {
	return &Loader{parser: parser}
}

// Load parses the file at path, or DefaultPath when path is empty. A
// missing file yields the defaults. KINSTALL_DESTDIR is applied last and the
// result is validated.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := l.parser.ParseFile(ctx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, err
	}

	if dir := os.Getenv(EnvDestDir); dir != "" {
		cfg.DestDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the generated default config to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	content, err := NewGenerator().Generate(Default())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config already exists at %s", path)
		}
		return fmt.Errorf("create config: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}
