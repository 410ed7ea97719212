package agent

import (
	"context"
	"time"

	"mediaagent/internal/catalog"
	"mediaagent/internal/config"
	"mediaagent/internal/deps"
	"mediaagent/internal/preflight"
)

// Environment holds the checks that need no open store.
type Environment struct {
	Preflight []preflight.Result
	Binaries  []deps.Status
}

// Healthy reports whether every required check passed.
func (e Environment) Healthy() bool {
	return preflight.FirstFailure(e.Preflight) == nil && len(deps.Missing(e.Binaries)) == 0
}

// CheckEnvironment evaluates directories, free space and external binaries.
func CheckEnvironment(ctx context.Context, cfg *config.Config) Environment {
	return Environment{
		Preflight: preflight.RunAll(ctx, cfg),
		Binaries:  deps.CheckBinaries(deps.Requirements(cfg)),
	}
}

// Health describes a running agent's view of its environment and catalog.
type Health struct {
	Environment
	Host          string
	RemoteAgent   bool
	StoreDriver   string
	StoreLocation string
	StoreErr      error
	CacheBackend  string
	CacheErr      error
	Conversions   map[catalog.ConversionStatus]int
	Cycles        int64
	FailedCycles  int64
}

// Healthy reports whether the environment, store and cache all pass.
func (h Health) Healthy() bool {
	return h.Environment.Healthy() && h.StoreErr == nil && h.CacheErr == nil
}

// Health gathers the status shown by the CLI.
func (a *Agent) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	h := Health{
		Environment:   CheckEnvironment(ctx, a.cfg),
		Host:          a.catalog.Host(),
		RemoteAgent:   a.cfg.Agent.RemoteAgent,
		StoreDriver:   a.store.Driver(),
		StoreLocation: a.store.Location(),
		CacheBackend:  a.cfg.Cache.Backend,
	}
	h.Cycles, h.FailedCycles = a.Counters()
	if err := a.store.Ping(ctx); err != nil {
		h.StoreErr = err
	} else if counts, err := a.store.ConversionCounts(ctx); err != nil {
		h.StoreErr = err
	} else {
		h.Conversions = counts
	}
	if a.redis != nil {
		h.CacheErr = a.redis.Ping(ctx).Err()
	}
	return h
}
