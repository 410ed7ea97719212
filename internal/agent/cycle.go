package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mediaagent/internal/ingest"
	"mediaagent/internal/logging"
	"mediaagent/internal/queue"
	"mediaagent/internal/services"
)

// CycleReport summarizes one scan cycle.
type CycleReport struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Returned ingest.Summary
	Scan     ingest.Summary
	Queue    queue.Stats
}

// RunCycle scans the media root once and waits for every admitted conversion
// to settle. Each cycle gets a fresh queue and a full remote budget.
func (a *Agent) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{ID: uuid.NewString(), Started: a.now()}
	ctx = services.WithRequestID(ctx, report.ID)
	logger := logging.WithContext(ctx, a.logger)

	a.dispatcher.Policy().ResetBudget()

	var errs []error
	if a.cfg.Agent.RemoteAgent {
		returned, err := a.scanner.ReturnPending(ctx)
		report.Returned = returned
		if err != nil {
			errs = append(errs, fmt.Errorf("return pending outputs: %w", err))
		}
	}

	q := queue.New(a.catalog, a.converter, a.publisher, a.logger)
	drained := make(chan error, 1)
	go func() {
		drained <- q.Drain(ctx)
	}()

	summary, scanErr := a.scanner.Scan(ctx, q)
	report.Scan = summary
	if scanErr != nil {
		errs = append(errs, scanErr)
	}
	q.Close()
	if err := q.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := <-drained; err != nil {
		errs = append(errs, err)
	}

	report.Queue = q.Stats()
	report.Duration = a.now().Sub(report.Started)

	err := errors.Join(errs...)
	attrs := []logging.Attr{
		logging.Int("files", summary.Files),
		logging.Int("catalogued", summary.Catalogued),
		logging.Int("queued", summary.Queued),
		logging.Int("shipped", summary.Shipped),
		logging.Int("converted", report.Queue.Converted),
		logging.Int("failed", report.Queue.Failed),
		logging.Int("publish_failed", report.Queue.PublishFailed),
		logging.Int("errors", summary.Errors),
		logging.Duration("duration", report.Duration),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
		logging.WarnWithContext(logger, "scan cycle finished with errors", "cycle_errors", attrs...)
	} else {
		logger.Info("scan cycle complete", logging.Args(attrs...)...)
	}
	return report, err
}

// RunOnce takes the instance lock, reconciles leftovers and runs one cycle.
func (a *Agent) RunOnce(ctx context.Context) (CycleReport, error) {
	release, err := a.acquire()
	if err != nil {
		return CycleReport{}, err
	}
	defer release()

	if _, err := a.Reconcile(ctx); err != nil {
		return CycleReport{}, err
	}
	return a.RunCycle(ctx)
}

// Run repeats scan cycles until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	release, err := a.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := a.Reconcile(ctx); err != nil {
		return err
	}

	var trigger <-chan struct{}
	if a.cfg.Agent.WatchMedia {
		settle := time.Duration(a.cfg.Agent.WatchSettleSeconds) * time.Second
		w, err := newWatcher(a.cfg.Paths.MediaDir, settle, a.logger)
		if err != nil {
			logging.WarnWithContext(a.logger, "media watcher unavailable; relying on scan interval", "watcher_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new files wait for the next scheduled cycle"),
			)
		} else {
			defer w.Close()
			go w.Run(ctx)
			trigger = w.Events()
		}
	}

	interval := time.Duration(a.cfg.Agent.ScanInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("agent started",
		logging.Duration("scan_interval", interval),
		logging.Bool("watch_media", trigger != nil),
	)
	for {
		a.cycle(ctx)
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping",
				logging.Int64("cycles", a.cycles.Load()),
				logging.Int64("failed_cycles", a.failedCycles.Load()),
			)
			return nil
		case <-ticker.C:
		case <-trigger:
			a.logger.Debug("media change detected; starting cycle early")
			ticker.Reset(interval)
		}
	}
}

func (a *Agent) cycle(ctx context.Context) {
	a.cycles.Add(1)
	if _, err := a.RunCycle(ctx); err != nil && ctx.Err() == nil {
		a.failedCycles.Add(1)
	}
}

// Counters returns the number of cycles run and how many ended with errors.
func (a *Agent) Counters() (cycles, failed int64) {
	return a.cycles.Load(), a.failedCycles.Load()
}
