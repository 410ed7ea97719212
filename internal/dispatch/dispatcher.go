package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"mediaagent/internal/config"
	"mediaagent/internal/logging"
	"mediaagent/internal/queue"
	"mediaagent/internal/services"
	"mediaagent/internal/transfer"
)

// ErrInsufficientSpace reports that the destination cannot hold the file and
// still keep the configured free-space floor.
var ErrInsufficientSpace = errors.New("insufficient free space on destination")

// Transports hands out a Transport per host. *transfer.Router satisfies it.
type Transports interface {
	For(ctx context.Context, host string) (transfer.Transport, error)
	Drop(host string)
}

// Enqueuer accepts jobs for local conversion. *queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) (bool, error)
}

// Outcome describes what Dispatch did with a job.
type Outcome struct {
	Decision Decision
	Queued   bool
	Shipped  bool
	Skipped  bool
	Remote   string
}

// Dispatcher executes Policy decisions.
type Dispatcher struct {
	policy     *Policy
	transports Transports
	remoteDir  func(host string) string
	returnHost string
	returnBase string
	minFree    uint64
	logger     *slog.Logger
}

// New builds a dispatcher for cfg's role and roster.
func New(cfg *config.Config, policy *Policy, transports Transports, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		policy:     policy,
		transports: transports,
		remoteDir:  cfg.RemoteConversionDir,
		returnHost: cfg.Agent.ControlHost,
		returnBase: cfg.Agent.ReturnBasePath,
		minFree:    cfg.MinFreeBytes(),
		logger:     logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Policy returns the routing policy.
func (d *Dispatcher) Policy() *Policy { return d.policy }

// Dispatch routes job to the local queue or ships its input to the next
// remote host. A failed ship leaves the local file in place and the job
// unqueued; the next scan picks it up again.
func (d *Dispatcher) Dispatch(ctx context.Context, q Enqueuer, job *queue.Job) (Outcome, error) {
	decision := d.policy.Decide()
	logger := logging.WithContext(ctx, d.logger).With(logging.String("input", job.Input()))
	logger.Info("dispatch decision",
		logging.Args(logging.DecisionAttrs("dispatch_route", string(decision.Route), decision.Reason)...)...)

	out := Outcome{Decision: decision}
	if decision.Route == RouteLocal {
		queued, err := q.Enqueue(ctx, job)
		out.Queued = queued
		return out, err
	}

	category := job.Category()
	if category == "" {
		category = CategoryOf(job.Input())
	}
	remote := ShipPath(d.remoteDir(decision.Host), category, job.Input())
	out.Remote = remote
	ctx = services.WithHost(ctx, decision.Host)
	shipped, err := d.Ship(ctx, decision.Host, job.Input(), remote)
	if err != nil {
		return out, err
	}
	out.Shipped = shipped
	out.Skipped = !shipped
	return out, nil
}

// Ship copies local to remote on host, then removes local. The free-space
// floor is checked first; past it, an existing remote is a no-op returning false.
func (d *Dispatcher) Ship(ctx context.Context, host, local, remote string) (bool, error) {
	logger := logging.WithContext(ctx, d.logger).With(
		logging.String(logging.FieldHost, host),
		logging.String("local", local),
		logging.String("remote", remote),
	)

	info, err := os.Stat(local)
	if err != nil {
		return false, services.Wrap(services.ErrNotFound, "dispatch", "stat local", "source file is missing", err)
	}

	t, err := d.transports.For(ctx, host)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "dispatch", "connect", fmt.Sprintf("cannot reach %s", host), err)
	}

	dir := path.Dir(remote)
	free, err := t.FreeSpace(ctx, dir)
	if err != nil {
		d.transports.Drop(host)
		return false, services.Wrap(services.ErrTransient, "dispatch", "free space", "cannot read destination free space", err)
	}
	size := uint64(info.Size())
	if free < size || free-size < d.minFree {
		logging.WarnWithContext(logger, "destination too full", "insufficient_space",
			logging.Uint64("free_bytes", free),
			logging.Uint64("size_bytes", size),
			logging.Uint64("min_free_bytes", d.minFree),
			logging.String(logging.FieldErrorHint, "free space on the remote host or lower agent.min_free_gib"),
		)
		return false, fmt.Errorf("%w: %s has %d bytes free, need %d plus %d", ErrInsufficientSpace, host, free, size, d.minFree)
	}

	exists, err := t.Exists(ctx, remote)
	if err != nil {
		d.transports.Drop(host)
		return false, services.Wrap(services.ErrTransient, "dispatch", "stat remote", "cannot inspect destination", err)
	}
	if exists {
		logger.Info("destination already present, nothing to ship")
		return false, nil
	}

	if err := t.MkdirAll(ctx, dir); err != nil {
		d.transports.Drop(host)
		return false, services.Wrap(services.ErrTransient, "dispatch", "mkdir", "cannot create destination directory", err)
	}
	written, err := t.Put(ctx, local, remote)
	if err != nil {
		d.transports.Drop(host)
		return false, services.Wrap(services.ErrTransient, "dispatch", "put", "transfer failed", err)
	}
	if err := os.Remove(local); err != nil {
		logging.WarnWithContext(logger, "local copy not removed after transfer", "cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the file is shipped again on the next scan"),
		)
	}
	logger.Info("file shipped", logging.Int64("bytes", written))
	return true, nil
}

// ReturnToControl is the publisher a remote agent uses: it ships the
// converted output back to the control host's return tree.
func (d *Dispatcher) ReturnToControl() queue.Publisher {
	return queue.PublisherFunc(func(ctx context.Context, job *queue.Job) error {
		if d.returnHost == "" {
			return services.Wrap(services.ErrConfiguration, "dispatch", "return", "agent.control_host is not set", nil)
		}
		category := job.Category()
		if category == "" {
			category = CategoryOf(job.Input())
		}
		remote := ReturnPath(d.returnBase, category, job.Output())
		ctx = services.WithHost(ctx, d.returnHost)
		_, err := d.Ship(ctx, d.returnHost, filepath.Clean(job.Output()), remote)
		return err
	})
}
