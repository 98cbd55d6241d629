package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile reads and parses the config at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	code, err := io.ReadAll(io.LimitReader(f, MaxConfigSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(code) > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, MaxConfigSize),
		}
	}

	return p.ParseString(ctx, string(code))
}

// ParseString evaluates Lua code and overlays the "kinstall" table onto
// the defaults. Evaluation stops after MaxParseTime.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, MaxParseTime)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoString(luaCode); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: err.Error()}
		}
		return nil, &ParseError{Message: "Lua syntax error", Detail: err.Error()}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "kinstall" table.
func extractConfig(L *lua.LState) (*Config, error) {
	global := L.GetGlobal(luaGlobalKinstall)
	table, ok := global.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'kinstall' table",
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}

	cfg := Default()

	strs := []struct {
		field string
		dst   *string
	}{
		{luaFieldDestDir, &cfg.DestDir},
		{luaFieldVersion, &cfg.Version},
		{luaFieldDevice, &cfg.Device},
		{luaFieldPort, &cfg.Port},
		{luaFieldTool, &cfg.Tool},
		{luaFieldReleaseBaseURL, &cfg.ReleaseBaseURL},
		{luaFieldPubkeyURL, &cfg.PubkeyURL},
		{luaFieldLogLevel, &cfg.LogLevel},
	}
	for _, s := range strs {
		if err := stringField(table, s.field, s.dst); err != nil {
			return nil, err
		}
	}

	var baud float64
	if set, err := numberField(table, luaFieldBaudrate, &baud); err != nil {
		return nil, err
	} else if set {
		if baud != math.Trunc(baud) {
			return nil, fieldError(luaFieldBaudrate, "expected integer, got %v", baud)
		}
		cfg.Baudrate = int(baud)
	}

	if err := secondsField(table, luaFieldDelay, luaFieldDelay, &cfg.CompletionDelay); err != nil {
		return nil, err
	}

	switch v := table.RawGetString(luaFieldTimeouts).(type) {
	case *lua.LNilType:
	case *lua.LTable:
		timeouts := []struct {
			field string
			dst   *time.Duration
		}{
			{luaFieldDownload, &cfg.Timeouts.Download},
			{luaFieldStall, &cfg.Timeouts.Stall},
			{luaFieldDevicePhase, &cfg.Timeouts.Device},
		}
		for _, t := range timeouts {
			if err := secondsField(v, t.field, luaFieldTimeouts+"."+t.field, t.dst); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fieldError(luaFieldTimeouts, "expected table, got %s", v.Type())
	}

	return cfg, nil
}

func stringField(t *lua.LTable, field string, dst *string) error {
	switch v := t.RawGetString(field).(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		*dst = string(v)
		return nil
	default:
		return fieldError(field, "expected string, got %s", v.Type())
	}
}

func numberField(t *lua.LTable, field string, dst *float64) (bool, error) {
	switch v := t.RawGetString(field).(type) {
	case *lua.LNilType:
		return false, nil
	case lua.LNumber:
		*dst = float64(v)
		return true, nil
	default:
		return false, fieldError(field, "expected number, got %s", v.Type())
	}
}

// secondsField reads a duration given in (possibly fractional) seconds.
func secondsField(t *lua.LTable, field, name string, dst *time.Duration) error {
	var secs float64
	set, err := numberField(t, field, &secs)
	if err != nil {
		return fieldError(name, "expected seconds, got %s", t.RawGetString(field).Type())
	}
	if set {
		*dst = time.Duration(math.Round(secs * float64(time.Second)))
	}
	return nil
}

func fieldError(field, format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf("invalid '%s' field", field),
		Detail:  fmt.Sprintf(format, args...),
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
