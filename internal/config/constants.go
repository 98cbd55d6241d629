package config

import (
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/flasher"
)

// Lua schema field names and globals
const (
	luaGlobalKinstall      = "kinstall"
	luaFieldDestDir        = "destdir"
	luaFieldVersion        = "version"
	luaFieldDevice         = "device"
	luaFieldBaudrate       = "baudrate"
	luaFieldPort           = "port"
	luaFieldTool           = "tool"
	luaFieldReleaseBaseURL = "release_base_url"
	luaFieldPubkeyURL      = "pubkey_url"
	luaFieldDelay          = "completion_delay"
	luaFieldTimeouts       = "timeouts"
	luaFieldDownload       = "download"
	luaFieldStall          = "stall"
	luaFieldDevicePhase    = "device"
	luaFieldLogLevel       = "log_level"
)

// Environment variables
const (
	EnvConfig  = "KINSTALL_CONFIG"
	EnvDestDir = "KINSTALL_DESTDIR"
)

// Resource limits for config evaluation
const (
	MaxConfigSize  = 1 << 20
	MaxParseTime   = 5 * time.Second
	callStackLimit = 256
	registryLimit  = 8 * 1024
)

// Defaults
const (
	DefaultVersion         = "v24.11.1"
	DefaultDevice          = "amigo"
	DefaultTool            = flasher.DefaultTool
	DefaultLogLevel        = "warn"
	DefaultDownloadTimeout = 10 * time.Minute
	DefaultStallTimeout    = 60 * time.Second
	DefaultDeviceTimeout   = 15 * time.Minute
)
