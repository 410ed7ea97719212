package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MediaDir  string `toml:"media_dir"`
	ImagesDir string `toml:"images_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Database contains configuration for the durable catalog store.
type Database struct {
	Driver     string `toml:"driver"` // sqlite or postgres
	Path       string `toml:"path"`   // SQLite file, defaults to <state_dir>/catalog.db
	DSN        string `toml:"dsn"`    // PostgreSQL connection string
	MaxRetries int    `toml:"max_retries"`
}

// Cache contains configuration for the catalog cache layer.
type Cache struct {
	Backend       string `toml:"backend"` // memory or redis
	TTLMinutes    int    `toml:"ttl_minutes"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	KeyPrefix     string `toml:"key_prefix"`
}

// Agent contains configuration for the scan loop and the fleet role.
type Agent struct {
	RemoteAgent          bool     `toml:"remote_agent"`
	ControlHost          string   `toml:"control_host"`
	RemoteHosts          []string `toml:"remote_hosts"`
	ScanInterval         int      `toml:"scan_interval"`
	DownloadCheckSeconds int      `toml:"download_check_seconds"`
	ReturnBasePath       string   `toml:"return_base_path"`
	RemoteConversionDir  string   `toml:"remote_conversion_dir"`
	MinFreeGiB           int      `toml:"min_free_gib"`
	ScrubFilenames       bool     `toml:"scrub_filenames"`
	Thumbnails           bool     `toml:"thumbnails"`
	WatchMedia           bool     `toml:"watch_media"`
	WatchSettleSeconds   int      `toml:"watch_settle_seconds"`
}

// SSH contains configuration for file transfers between fleet hosts.
type SSH struct {
	DefaultUser    string            `toml:"default_user"`
	Users          map[string]string `toml:"users"`
	KeyPath        string            `toml:"key_path"`
	KnownHostsPath string            `toml:"known_hosts_path"`
	Port           int               `toml:"port"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
}

// Transcode contains configuration for ffmpeg invocations.
type Transcode struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	LowPriority   bool   `toml:"low_priority"`
	VerifyOutput  bool   `toml:"verify_output"`
}

// Transmission contains configuration for the torrent client probe.
type Transmission struct {
	Enabled bool   `toml:"enabled"`
	Binary  string `toml:"binary"`
	Auth    string `toml:"auth"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the agent.
//
// Configuration sections by subsystem:
//   - Paths: media root, thumbnail output, state and log directories
//   - Database: SQLite or PostgreSQL catalog store
//   - Cache: in-process or Redis catalog cache
//   - Agent: fleet role, scan cadence, dispatch and ingestion switches
//   - SSH: per-host identities and transport settings
//   - Transcode: ffmpeg/ffprobe binaries and scheduling priority
//   - Transmission: torrent client probe for TV folders
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Database     Database     `toml:"database"`
	Cache        Cache        `toml:"cache"`
	Agent        Agent        `toml:"agent"`
	SSH          SSH          `toml:"ssh"`
	Transcode    Transcode    `toml:"transcode"`
	Transmission Transmission `toml:"transmission"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaagent/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaagent.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the agent writes to.
// The media root is never created; a missing media root is reported by preflight.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Agent.Thumbnails && !c.Agent.RemoteAgent && strings.TrimSpace(c.Paths.ImagesDir) != "" {
		// Best-effort so a detached media disk does not block config load.
		_ = os.MkdirAll(c.Paths.ImagesDir, 0o755)
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mediaagent.lock")
}

// UserFor returns the SSH login used for host.
func (c *Config) UserFor(host string) string {
	host = strings.TrimSpace(host)
	if user, ok := c.SSH.Users[host]; ok && strings.TrimSpace(user) != "" {
		return strings.TrimSpace(user)
	}
	return c.SSH.DefaultUser
}

// RemoteConversionDir returns the directory on host that receives shipped files.
// Relative settings are resolved against the login's home directory.
func (c *Config) RemoteConversionDir(host string) string {
	dir := strings.TrimSpace(c.Agent.RemoteConversionDir)
	if strings.HasPrefix(dir, "/") {
		return dir
	}
	return "/home/" + c.UserFor(host) + "/" + strings.Trim(dir, "/")
}

// MinFreeBytes returns the remote free space floor in bytes.
func (c *Config) MinFreeBytes() uint64 {
	if c.Agent.MinFreeGiB <= 0 {
		return 0
	}
	return uint64(c.Agent.MinFreeGiB) << 30
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
