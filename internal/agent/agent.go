package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"

	"mediaagent/internal/catalog"
	"mediaagent/internal/catalog/rediscache"
	"mediaagent/internal/config"
	"mediaagent/internal/dispatch"
	"mediaagent/internal/ingest"
	"mediaagent/internal/logging"
	"mediaagent/internal/queue"
	"mediaagent/internal/store"
	"mediaagent/internal/transcode"
	"mediaagent/internal/transfer"
)

// ErrLocked reports that another agent holds the state directory lock.
var ErrLocked = errors.New("another mediaagent instance is already running")

// Option customizes Bootstrap.
type Option func(*settings)

type settings struct {
	host       string
	transports dispatch.Transports
	runner     transcode.Runner
	probe      transcode.ProbeFunc
	torrents   ingest.OutputFunc
	now        func() time.Time
}

// WithHost overrides the identity stamped on ledger rows.
func WithHost(host string) Option {
	return func(s *settings) { s.host = host }
}

// WithTransports replaces the SFTP router.
func WithTransports(t dispatch.Transports) Option {
	return func(s *settings) { s.transports = t }
}

// WithRunner replaces the command runner used for ffmpeg.
func WithRunner(r transcode.Runner) Option {
	return func(s *settings) { s.runner = r }
}

// WithProbe replaces ffprobe.
func WithProbe(p transcode.ProbeFunc) Option {
	return func(s *settings) { s.probe = p }
}

// WithTorrentOutput replaces the transmission-remote executor.
func WithTorrentOutput(fn ingest.OutputFunc) Option {
	return func(s *settings) { s.torrents = fn }
}

// Agent owns the long-lived components of one process.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	store      *store.Store
	redis      *redis.Client
	router     *transfer.Router
	catalog    *catalog.Catalog
	converter  *transcode.Converter
	dispatcher *dispatch.Dispatcher
	scanner    *ingest.Scanner
	publisher  queue.Publisher

	lock *flock.Flock
	now  func() time.Time

	cycles       atomic.Int64
	failedCycles atomic.Int64
}

// Bootstrap builds an agent from cfg.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("agent requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "agent"),
		store:  st,
		lock:   flock.New(cfg.LockPath()),
		now:    s.now,
	}

	caches, err := a.openCaches(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	host := strings.TrimSpace(s.host)
	if host == "" {
		host = localHostname()
	}
	a.catalog = catalog.New(st, caches, host)

	transports := s.transports
	if transports == nil {
		a.router = transfer.NewSFTPRouter(transfer.NewDialer(cfg, logger))
		transports = a.router
	}
	policy := dispatch.NewPolicy(cfg.Agent.RemoteAgent, dispatch.NewRoster(cfg.Agent.RemoteHosts))
	a.dispatcher = dispatch.New(cfg, policy, transports, logger)

	var convOpts []transcode.Option
	if s.runner != nil {
		convOpts = append(convOpts, transcode.WithRunner(s.runner))
	}
	if s.probe != nil {
		convOpts = append(convOpts, transcode.WithProbe(s.probe))
	}
	a.converter = transcode.NewFromConfig(cfg, logger, convOpts...)

	var scanOpts []ingest.Option
	var scanCatalog *catalog.Catalog
	if cfg.Agent.RemoteAgent {
		a.publisher = a.dispatcher.ReturnToControl()
		scanOpts = append(scanOpts, ingest.WithReturner(a.publisher))
	} else {
		scanCatalog = a.catalog
		a.publisher = ingest.CatalogPublisher(a.catalog, cfg.Paths.MediaDir)
		if cfg.Agent.Thumbnails {
			scanOpts = append(scanOpts, ingest.WithThumbnailer(ingest.NewThumbnailer(cfg, a.catalog, s.runner, s.probe, logger)))
		}
		if probe := ingest.NewTransmission(cfg, s.torrents); probe != nil {
			scanOpts = append(scanOpts, ingest.WithTorrentProbe(probe))
		}
	}
	a.scanner = ingest.New(cfg, scanCatalog, a.dispatcher, logger, scanOpts...)

	a.logger.Info("agent ready",
		logging.String(logging.FieldHost, host),
		logging.Bool("remote_agent", cfg.Agent.RemoteAgent),
		logging.Int("remote_hosts", len(cfg.Agent.RemoteHosts)),
		logging.String("store", st.Driver()),
		logging.String("cache", cfg.Cache.Backend),
		logging.String("media_dir", cfg.Paths.MediaDir),
	)
	return a, nil
}

func (a *Agent) openCaches(ctx context.Context) (catalog.Caches, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		client, err := rediscache.Dial(ctx, rediscache.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		})
		if err != nil {
			return catalog.Caches{}, fmt.Errorf("open redis cache: %w", err)
		}
		a.redis = client
		return rediscache.Caches(client, a.cfg.Cache.KeyPrefix, 0), nil
	default:
		ttl := time.Duration(a.cfg.Cache.TTLMinutes) * time.Minute
		return catalog.MemoryCaches(ttl, a.now), nil
	}
}

// Catalog returns the catalog facade.
func (a *Agent) Catalog() *catalog.Catalog { return a.catalog }

// Store returns the durable store.
func (a *Agent) Store() *store.Store { return a.store }

// Dispatcher returns the dispatcher.
func (a *Agent) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// Close releases the store, the cache client and open transports.
func (a *Agent) Close() error {
	var errs []error
	if a.router != nil {
		errs = append(errs, a.router.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// acquire takes the single-instance lock.
func (a *Agent) acquire() (func(), error) {
	ok, err := a.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, a.cfg.LockPath())
	}
	return func() {
		if err := a.lock.Unlock(); err != nil {
			a.logger.Warn("failed to release agent lock", logging.Error(err))
		}
	}, nil
}

func localHostname() string {
	name, err := os.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return "localhost"
	}
	return name
}
