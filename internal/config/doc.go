// Package config loads, normalizes, and validates mediaagent configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment fallbacks the
// agent fleet has always been deployed with (MEDIA_DIRECTORY,
// IS_REMOTE_AGENT_HOST, REMOTE_AGENT_HOSTS, CONTROL_AGENT_HOST, REDIS_HOST,
// DATABASE_URL). The Config type centralizes every knob the agent and CLI
// need, including the static host-to-login mapping used for transfers.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
