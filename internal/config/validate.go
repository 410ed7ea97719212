package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateAgent(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		return errors.New("paths.media_dir must be set (or export MEDIA_DIRECTORY)")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path must be set when database.driver is sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or export DATABASE_URL)")
		}
	default:
		return fmt.Errorf("database.driver: unsupported value %q (use sqlite or postgres)", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr must be set when cache.backend is redis (or export REDIS_HOST)")
		}
		if c.Cache.RedisDB < 0 {
			return errors.New("cache.redis_db must be >= 0")
		}
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (use memory or redis)", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateAgent() error {
	if c.Agent.ScanInterval <= 0 {
		return errors.New("agent.scan_interval must be positive (seconds)")
	}
	if c.Agent.RemoteAgent && c.Agent.ControlHost == "" {
		return errors.New("agent.control_host must be set when agent.remote_agent is true (or export CONTROL_AGENT_HOST)")
	}
	if !strings.HasPrefix(c.Agent.ReturnBasePath, "/") {
		return errors.New("agent.return_base_path must be an absolute path")
	}
	for _, host := range c.Agent.RemoteHosts {
		if strings.ContainsAny(host, " /") {
			return fmt.Errorf("agent.remote_hosts: invalid host %q", host)
		}
	}
	return nil
}
