package agent

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediaagent/internal/catalog"
	"mediaagent/internal/fileutil"
	"mediaagent/internal/logging"
	"mediaagent/internal/queue"
	"mediaagent/internal/services"
	"mediaagent/internal/transcode"
)

// Ledger messages written for rows a previous process left pending.
const (
	MessageInterrupted  = "interrupted"
	MessageInputMissing = "input missing"
)

// ReconcileReport counts what startup reconciliation settled.
type ReconcileReport struct {
	Converted    int
	Interrupted  int
	Missing      int
	TempsRemoved int
}

// Reconcile settles ledger rows this host left pending and removes stale
// in-progress outputs under the media root. No queue is draining when it runs.
func (a *Agent) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	rows, err := a.catalog.PendingConversions(ctx)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "reconcile", "list pending", "Failed to list pending conversions", err)
	}

	var errs []error
	for i := range rows {
		if err := a.settle(ctx, &rows[i], &report); err != nil {
			errs = append(errs, err)
		}
	}

	removed, err := sweepTemps(a.cfg.Paths.MediaDir)
	report.TempsRemoved = removed
	if err != nil {
		errs = append(errs, err)
	}

	if len(rows) > 0 || removed > 0 {
		a.logger.Info("startup reconciliation complete",
			logging.Int("pending_rows", len(rows)),
			logging.Int("converted", report.Converted),
			logging.Int("interrupted", report.Interrupted),
			logging.Int("input_missing", report.Missing),
			logging.Int("temps_removed", removed),
		)
	}
	return report, errors.Join(errs...)
}

func (a *Agent) settle(ctx context.Context, row *catalog.Conversion, report *ReconcileReport) error {
	inputPresent, err := fileutil.Exists(row.OriginalFilename)
	if err != nil {
		return err
	}
	outputPresent := false
	if row.ConvertedFilename != "" {
		if outputPresent, err = fileutil.Exists(row.ConvertedFilename); err != nil {
			return err
		}
	}

	switch {
	case outputPresent && !inputPresent:
		if err := a.catalog.RecordOutcome(ctx, row.ID, catalog.ConversionConverted, ""); err != nil {
			return err
		}
		report.Converted++
		if !a.cfg.Agent.RemoteAgent && row.OriginalVideoID > 0 {
			job := queue.NewJob(row.OriginalFilename, row.ConvertedFilename, row.OriginalVideoID)
			if err := a.publisher.Publish(ctx, job); err != nil {
				logging.WarnWithContext(a.logger, "failed to repoint catalog row after interrupted conversion", "reconcile_publish_failed",
					logging.Int64(logging.FieldVideoID, row.OriginalVideoID),
					logging.String("output", row.ConvertedFilename),
					logging.Error(err),
				)
			}
		}
	case inputPresent:
		if row.ConvertedFilename != "" {
			temp := transcode.TempPath(row.ConvertedFilename)
			if err := os.Remove(temp); err != nil && !errors.Is(err, fs.ErrNotExist) {
				a.logger.Debug("could not remove interrupted temp output", logging.String("path", temp), logging.Error(err))
			}
		}
		if err := a.catalog.RecordOutcome(ctx, row.ID, catalog.ConversionFailed, MessageInterrupted); err != nil {
			return err
		}
		report.Interrupted++
	default:
		if err := a.catalog.RecordOutcome(ctx, row.ID, catalog.ConversionFailed, MessageInputMissing); err != nil {
			return err
		}
		report.Missing++
	}
	return nil
}

// sweepTemps deletes leftover in-progress outputs below root.
func sweepTemps(root string) (int, error) {
	if strings.TrimSpace(root) == "" {
		return 0, nil
	}
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.IsDir() || !transcode.IsTempArtifact(path) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}
