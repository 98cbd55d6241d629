package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Generator renders a Config as kinstall.lua source.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
	}
}

// Generate returns Lua code that parses back to config. Empty optional
// strings are emitted as comments.
func (g *Generator) Generate(config *Config) (string, error) {
	if config == nil {
		return "", fmt.Errorf("config is nil")
	}

	var buf bytes.Buffer

	buf.WriteString("-- kinstall configuration\n")
	buf.WriteString("-- Durations are in seconds. 0 disables a timeout.\n\n")
	buf.WriteString(luaGlobalKinstall + " = {\n")

	g.writeString(&buf, 1, luaFieldDestDir, config.DestDir)
	g.writeString(&buf, 1, luaFieldVersion, config.Version)
	g.writeString(&buf, 1, luaFieldDevice, config.Device)
	g.writeField(&buf, 1, luaFieldBaudrate, strconv.Itoa(config.Baudrate))
	g.writeString(&buf, 1, luaFieldPort, config.Port)
	g.writeString(&buf, 1, luaFieldTool, config.Tool)
	g.writeString(&buf, 1, luaFieldReleaseBaseURL, config.ReleaseBaseURL)
	g.writeString(&buf, 1, luaFieldPubkeyURL, config.PubkeyURL)
	g.writeField(&buf, 1, luaFieldDelay, seconds(config.CompletionDelay))

	buf.WriteString(g.indent + luaFieldTimeouts + " = {\n")
	g.writeField(&buf, 2, luaFieldDownload, seconds(config.Timeouts.Download))
	g.writeField(&buf, 2, luaFieldStall, seconds(config.Timeouts.Stall))
	g.writeField(&buf, 2, luaFieldDevicePhase, seconds(config.Timeouts.Device))
	buf.WriteString(g.indent + "},\n")

	g.writeString(&buf, 1, luaFieldLogLevel, config.LogLevel)
	buf.WriteString("}\n")

	return buf.String(), nil
}

func (g *Generator) writeString(buf *bytes.Buffer, depth int, field, value string) {
	if value == "" {
		buf.WriteString(strings.Repeat(g.indent, depth))
		buf.WriteString("-- " + field + " = nil,\n")
		return
	}
	g.writeField(buf, depth, field, g.quoteLuaString(value))
}

func (g *Generator) writeField(buf *bytes.Buffer, depth int, field, value string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(field)
	buf.WriteString(" = ")
	buf.WriteString(value)
	buf.WriteString(",\n")
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
