// Package config loads kinstall's Lua configuration file.
//
// # Overview
//
// Settings live in a kinstall.lua file that assigns a global "kinstall"
// table:
//
//	kinstall = {
//	  destdir = "/home/me/krux",
//	  version = "v24.11.1",
//	  device = "amigo",
//	  port = platform.when(platform.is_linux, "/dev/ttyUSB0"),
//	  timeouts = { download = 600, stall = 60, device = 900 },
//	}
//
// Missing fields keep their defaults (see Default). The file location comes
// from KINSTALL_CONFIG, falling back to kinstall/kinstall.lua under the
// user config directory. KINSTALL_DESTDIR overrides destdir, and command
// line flags override both.
//
// # Sandbox
//
// The file is evaluated by gopher-lua with only the base, string, table and
// math libraries loaded. File, process and module loading functions are
// removed, the call stack is bounded and evaluation is cancelled after
// MaxParseTime. A read-only "platform" table (see package platform) lets a
// config branch on the host.
//
// # Errors
//
// Lua errors surface as *ParseError, schema violations as *ValidationError.
// FormatError renders either for the terminal.
package config
