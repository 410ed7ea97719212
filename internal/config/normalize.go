package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeCache()
	c.normalizeAgent()
	if err := c.normalizeSSH(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeTransmission()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("MEDIA_DIRECTORY"); ok && strings.TrimSpace(value) != "" {
		c.Paths.MediaDir = strings.TrimSpace(value)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImagesDir) == "" && c.Paths.MediaDir != "" {
		c.Paths.ImagesDir = filepath.Join(c.Paths.MediaDir, "images")
	}
	if c.Paths.ImagesDir, err = expandPath(c.Paths.ImagesDir); err != nil {
		return fmt.Errorf("paths.images_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "":
		c.Database.Driver = defaultDatabaseDriver
	case "postgresql", "pgx":
		c.Database.Driver = "postgres"
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Database.DSN = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(c.Paths.StateDir, "catalog.db")
	}
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	if c.Database.MaxRetries <= 0 {
		c.Database.MaxRetries = defaultDatabaseMaxRetries
	}
	return nil
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	if c.Cache.RedisAddr == "" {
		if host, ok := os.LookupEnv("REDIS_HOST"); ok && strings.TrimSpace(host) != "" {
			port := defaultRedisPort
			if value, ok := os.LookupEnv("REDIS_PORT"); ok && strings.TrimSpace(value) != "" {
				port = strings.TrimSpace(value)
			}
			c.Cache.RedisAddr = net.JoinHostPort(strings.TrimSpace(host), port)
		}
	}
	if c.Cache.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Cache.RedisPassword = value
		}
	}
	if value, ok := os.LookupEnv("REDIS_DB"); ok {
		if db, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			c.Cache.RedisDB = db
		}
	}
	c.Cache.KeyPrefix = strings.Trim(strings.TrimSpace(c.Cache.KeyPrefix), ":")
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = defaultCacheKeyPrefix
	}
	if c.Cache.TTLMinutes < 0 {
		c.Cache.TTLMinutes = 0
	}
}

func (c *Config) normalizeAgent() {
	if value, ok := os.LookupEnv("IS_REMOTE_AGENT_HOST"); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			c.Agent.RemoteAgent = parsed
		}
	}
	c.Agent.ControlHost = strings.TrimSpace(c.Agent.ControlHost)
	if c.Agent.ControlHost == "" {
		if value, ok := os.LookupEnv("CONTROL_AGENT_HOST"); ok {
			c.Agent.ControlHost = strings.TrimSpace(value)
		}
	}
	if len(c.Agent.RemoteHosts) == 0 {
		if value, ok := os.LookupEnv("REMOTE_AGENT_HOSTS"); ok && strings.TrimSpace(value) != "" {
			c.Agent.RemoteHosts = strings.Split(value, ",")
		}
	}
	hosts := make([]string, 0, len(c.Agent.RemoteHosts))
	seen := make(map[string]struct{}, len(c.Agent.RemoteHosts))
	for _, host := range c.Agent.RemoteHosts {
		normalized := strings.TrimSpace(host)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		hosts = append(hosts, normalized)
	}
	c.Agent.RemoteHosts = hosts
	c.Agent.ReturnBasePath = strings.TrimRight(strings.TrimSpace(c.Agent.ReturnBasePath), "/")
	if c.Agent.ReturnBasePath == "" {
		c.Agent.ReturnBasePath = defaultReturnBasePath
	}
	c.Agent.RemoteConversionDir = strings.TrimSpace(c.Agent.RemoteConversionDir)
	if c.Agent.RemoteConversionDir == "" {
		c.Agent.RemoteConversionDir = defaultRemoteConversionDir
	}
	if c.Agent.DownloadCheckSeconds < 0 {
		c.Agent.DownloadCheckSeconds = 0
	}
	if c.Agent.MinFreeGiB < 0 {
		c.Agent.MinFreeGiB = 0
	}
	if c.Agent.WatchSettleSeconds <= 0 {
		c.Agent.WatchSettleSeconds = defaultWatchSettleSeconds
	}
}

func (c *Config) normalizeSSH() error {
	c.SSH.DefaultUser = strings.TrimSpace(c.SSH.DefaultUser)
	if c.SSH.DefaultUser == "" {
		c.SSH.DefaultUser = defaultSSHUser
	}
	if c.SSH.Port <= 0 {
		c.SSH.Port = defaultSSHPort
	}
	if c.SSH.TimeoutSeconds <= 0 {
		c.SSH.TimeoutSeconds = defaultSSHTimeoutSeconds
	}
	var err error
	if c.SSH.KeyPath, err = expandPath(strings.TrimSpace(c.SSH.KeyPath)); err != nil {
		return fmt.Errorf("ssh.key_path: %w", err)
	}
	if c.SSH.KnownHostsPath, err = expandPath(strings.TrimSpace(c.SSH.KnownHostsPath)); err != nil {
		return fmt.Errorf("ssh.known_hosts_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeTransmission() {
	c.Transmission.Binary = strings.TrimSpace(c.Transmission.Binary)
	if c.Transmission.Binary == "" {
		c.Transmission.Binary = defaultTransmissionBinary
	}
	c.Transmission.Auth = strings.TrimSpace(c.Transmission.Auth)
	if c.Transmission.Auth == "" {
		if value, ok := os.LookupEnv("TRANSMISSION_AUTH"); ok {
			c.Transmission.Auth = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
