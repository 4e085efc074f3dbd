// Package config loads the environment-driven, closed configuration
// surface named in spec.md §6. There is no YAML registry and no static
// agent-chain/MCP-server definition: every Agent, Project and MCPGateway
// is a Store document created through the API, not a file on disk.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults mirror spec.md §6's stated defaults, used whenever the
// corresponding environment variable is unset.
const (
	DefaultModel            = "claude-sonnet-4-20250514"
	DefaultMaxTurns         = 15
	DefaultMCPTimeoutMillis = 300_000
	DefaultWorkspaceBase    = "/data/workspaces"

	DefaultMaxFileSize       = 50 * 1024 * 1024  // 50 MiB
	DefaultMaxFolderSize     = 500 * 1024 * 1024 // 500 MiB
	DefaultMaxFolderDepth    = 10
	DefaultMaxFilesPerFolder = 1000
	DefaultCleanupSchedule   = "@every 1h"
)

// BlockedFileExtensions is the closed set spec.md §6 names. Upload
// validation rejects any file whose extension (case-insensitive) appears
// here, regardless of MAX_FILE_SIZE.
var BlockedFileExtensions = []string{
	".exe", ".dll", ".so", ".dylib", ".msi", ".dmg", ".pkg", ".deb", ".rpm",
	".com", ".scr", ".pif", ".vbs", ".vbe", ".jse", ".ws", ".wsf", ".hta",
	".cpl", ".jar", ".app", ".elf", ".bin", ".run",
}

// LLMConfig holds the Anthropic credentials and per-Runner defaults.
type LLMConfig struct {
	AnthropicAPIKey string
	DefaultModel    string
	DefaultMaxTurns int
}

// StorageConfig holds the connection strings for the three shared-state
// backends spec.md §4 names: the document Store, the Client Cache, and the
// Task Broker.
type StorageConfig struct {
	StoreURI  string // e.g. postgres://... ; empty selects the in-memory Store
	CacheURI  string // e.g. redis://...    ; empty selects the in-memory Cache
	BrokerURI string // e.g. nats://...     ; empty selects the in-memory Broker
}

// MCPConfig holds MCP transport defaults shared across every Provider's
// gateway connections.
type MCPConfig struct {
	Timeout time.Duration
}

// WorkspaceConfig holds the Runner's per-task workspace provisioning
// defaults and sandbox toggles, per spec.md §4.7.
type WorkspaceConfig struct {
	BasePath       string
	SandboxEnabled bool
}

// UploadLimits holds the FolderUpload/file-upload closed limit set,
// mirroring the constants already enforced in pkg/models.FolderUpload.
// Carried here so a deployment's effective limits are visible alongside
// the rest of the configuration surface, even though validation itself
// reads the pkg/models constants directly (see DESIGN.md).
type UploadLimits struct {
	MaxFileSize       int64
	MaxFolderSize     int64
	MaxFolderDepth    int
	MaxFilesPerFolder int
	BlockedExtensions []string
}

// CleanupConfig holds the orphan-artifact sweep's schedule, per
// pkg/cleanup.Service.
type CleanupConfig struct {
	Schedule string
}

// Config is the umbrella configuration object threaded through
// cmd/taskforge's composition root.
type Config struct {
	LLM       LLMConfig
	Storage   StorageConfig
	MCP       MCPConfig
	Workspace WorkspaceConfig
	Uploads   UploadLimits
	Cleanup   CleanupConfig
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64Or(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// FromEnv builds a Config by reading the closed environment-variable set
// spec.md §6 names, applying its stated defaults for anything unset. It
// performs no I/O beyond os.Getenv; call Load first to populate the
// process environment from a .env file.
func FromEnv() *Config {
	return &Config{
		LLM: LLMConfig{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			DefaultModel:    envOr("DEFAULT_MODEL", DefaultModel),
			DefaultMaxTurns: envIntOr("DEFAULT_MAX_TURNS", DefaultMaxTurns),
		},
		Storage: StorageConfig{
			StoreURI:  os.Getenv("STORE_URI"),
			CacheURI:  os.Getenv("CACHE_URI"),
			BrokerURI: os.Getenv("BROKER_URI"),
		},
		MCP: MCPConfig{
			Timeout: time.Duration(envIntOr("MCP_TIMEOUT", DefaultMCPTimeoutMillis)) * time.Millisecond,
		},
		Workspace: WorkspaceConfig{
			BasePath:       envOr("WORKSPACE_BASE_PATH", DefaultWorkspaceBase),
			SandboxEnabled: envBoolOr("SANDBOX_ENABLED", true),
		},
		Uploads: UploadLimits{
			MaxFileSize:       envInt64Or("MAX_FILE_SIZE", DefaultMaxFileSize),
			MaxFolderSize:     envInt64Or("MAX_FOLDER_SIZE", DefaultMaxFolderSize),
			MaxFolderDepth:    envIntOr("MAX_FOLDER_DEPTH", DefaultMaxFolderDepth),
			MaxFilesPerFolder: envIntOr("MAX_FILES_PER_FOLDER", DefaultMaxFilesPerFolder),
			BlockedExtensions: BlockedFileExtensions,
		},
		Cleanup: CleanupConfig{
			Schedule: envOr("CLEANUP_SCHEDULE", DefaultCleanupSchedule),
		},
	}
}

// Validate reports a *ValidationError for the first required field found
// missing. ANTHROPIC_API_KEY is the only field with no safe default: every
// Runner invocation needs it to reach the LLM SDK.
func (c *Config) Validate() error {
	if c.LLM.AnthropicAPIKey == "" {
		return NewValidationError("llm", "anthropic_api_key", "", ErrMissingRequiredField)
	}
	return nil
}
