package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaagent/internal/catalog"
	"mediaagent/internal/config"
	"mediaagent/internal/dispatch"
	"mediaagent/internal/fileutil"
	"mediaagent/internal/logging"
	"mediaagent/internal/queue"
	"mediaagent/internal/services"
	"mediaagent/internal/textutil"
	"mediaagent/internal/transcode"
)

// Router routes a conversion job. *dispatch.Dispatcher satisfies it.
type Router interface {
	Dispatch(ctx context.Context, q dispatch.Enqueuer, job *queue.Job) (dispatch.Outcome, error)
}

// Summary counts what one scan did.
type Summary struct {
	Files       int
	Catalogued  int
	Skipped     int
	Downloading int
	Queued      int
	Shipped     int
	Adopted     int
	Images      int
	Thumbnails  int
	Returned    int
	Errors      int
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithTorrentProbe sets the torrent client probe used for TV folders.
func WithTorrentProbe(p TorrentProbe) Option {
	return func(s *Scanner) { s.torrents = p }
}

// WithThumbnailer enables thumbnail generation.
func WithThumbnailer(t *Thumbnailer) Option {
	return func(s *Scanner) { s.thumbs = t }
}

// WithReturner sets the publisher a remote agent ships leftover outputs with.
func WithReturner(p queue.Publisher) Option {
	return func(s *Scanner) { s.returner = p }
}

// WithDownloadCheck replaces the download completeness check.
func WithDownloadCheck(c DownloadCheck) Option {
	return func(s *Scanner) { s.downloads = c }
}

// Scanner walks the media tree and feeds the catalog and the dispatcher.
type Scanner struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	router    Router
	downloads DownloadCheck
	torrents  TorrentProbe
	thumbs    *Thumbnailer
	returner  queue.Publisher
	logger    *slog.Logger
}

// New builds a scanner. cat may be nil on a remote agent.
func New(cfg *config.Config, cat *catalog.Catalog, router Router, logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:       cfg,
		catalog:   cat,
		router:    router,
		downloads: NewDownloadCheck(time.Duration(cfg.Agent.DownloadCheckSeconds) * time.Second),
		logger:    logging.NewComponentLogger(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks the media directory once, routing new conversion work through q.
func (s *Scanner) Scan(ctx context.Context, q dispatch.Enqueuer) (Summary, error) {
	var sum Summary
	root := s.cfg.Paths.MediaDir
	if _, err := os.Stat(root); err != nil {
		return sum, services.Wrap(services.ErrConfiguration, "ingest", "scan", "media directory is not accessible", err)
	}
	started := time.Now()

	err := s.walk(ctx, root, &sum, func(path string) {
		sum.Files++
		if err := s.processFile(ctx, q, path, &sum); err != nil {
			sum.Errors++
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "file not ingested", "ingest_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the file is reconsidered on the next scan"),
			)
		}
	})

	s.logger.Info("scan finished",
		logging.Int("files", sum.Files),
		logging.Int("catalogued", sum.Catalogued),
		logging.Int("queued", sum.Queued),
		logging.Int("shipped", sum.Shipped),
		logging.Int("skipped", sum.Skipped),
		logging.Int("downloading", sum.Downloading),
		logging.Int("errors", sum.Errors),
		logging.Duration("duration", time.Since(started)),
	)
	return sum, err
}

// ReturnPending ships converted outputs still sitting in a remote agent's
// conversion directory back to the control host. It must not run while a
// drain is active.
func (s *Scanner) ReturnPending(ctx context.Context) (Summary, error) {
	var sum Summary
	if !s.cfg.Agent.RemoteAgent || s.returner == nil {
		return sum, nil
	}
	err := s.walk(ctx, s.cfg.Paths.MediaDir, &sum, func(path string) {
		if !IsBrowserFriendly(path) || transcode.IsTempArtifact(path) {
			return
		}
		sum.Files++
		job := queue.NewJob(path, path, 0).WithCategory(dispatch.CategoryOf(path))
		if err := s.returner.Publish(ctx, job); err != nil {
			sum.Errors++
			logging.WarnWithContext(s.logger, "converted file not returned", "return_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check connectivity to the control host"),
			)
			return
		}
		sum.Returned++
	})
	return sum, err
}

// walk visits every regular, non-hidden file under root. Unreadable subtrees
// are counted and skipped.
func (s *Scanner) walk(ctx context.Context, root string, sum *Summary, visit func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			sum.Errors++
			s.logger.Warn("path not readable", logging.String("path", path), logging.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		visit(path)
		return nil
	})
}

// processFile ingests one file. A panic is converted into an error so one
// bad file cannot abort the scan.
func (s *Scanner) processFile(ctx context.Context, q dispatch.Enqueuer, path string, sum *Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while ingesting %s: %v", path, r)
		}
	}()
	if transcode.IsTempArtifact(path) {
		return nil
	}
	kind := Classify(path)
	if IsPartial(path) {
		if Classify(strings.TrimSuffix(path, partialSuffix)) == KindVideo {
			sum.Downloading++
		}
		return nil
	}
	switch kind {
	case KindVideo:
		if s.cfg.Agent.RemoteAgent {
			return s.remoteVideo(ctx, q, path, sum)
		}
		return s.video(ctx, q, path, sum)
	case KindImage:
		if s.cfg.Agent.RemoteAgent {
			return nil
		}
		return s.image(ctx, path, sum)
	default:
		return nil
	}
}

func (s *Scanner) video(ctx context.Context, q dispatch.Enqueuer, path string, sum *Summary) error {
	existing, err := s.findVideo(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		sum.Skipped++
		return s.reconcile(ctx, q, existing, path, sum)
	}

	if ready, err := s.ready(ctx, path); err != nil || !ready {
		if err == nil {
			sum.Downloading++
		}
		return err
	}

	path = s.scrub(path)
	video := &catalog.Video{
		Filename:          path,
		CDNPath:           cdnPath(s.cfg.Paths.MediaDir, path),
		Title:             stem(path),
		EntertainmentType: s.entertainmentType(path),
		BrowserFriendly:   IsBrowserFriendly(path),
	}
	id, err := s.catalog.AddVideo(ctx, video)
	if err != nil {
		return fmt.Errorf("add video: %w", err)
	}
	video.ID = id
	sum.Catalogued++
	ctx = services.WithVideoID(ctx, id)
	logging.WithContext(ctx, s.logger).Info("video catalogued",
		logging.String("path", path),
		logging.String("type", video.EntertainmentType),
		logging.Bool("browser_friendly", video.BrowserFriendly),
	)

	if strings.EqualFold(video.EntertainmentType, tvType) {
		if err := s.registerEpisode(ctx, video); err != nil {
			logging.WarnWithContext(s.logger, "episode not registered", "episode_registration_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "video is catalogued without show metadata"),
			)
		}
	}

	if NeedsConversion(path) {
		return s.dispatch(ctx, q, video.ID, path, sum)
	}
	s.thumbnail(ctx, video, sum)
	return nil
}

// findVideo matches by the raw name first, then by the scrubbed name the file
// would be renamed to.
func (s *Scanner) findVideo(ctx context.Context, path string) (*catalog.Video, error) {
	found, err := s.catalog.FindVideo(ctx, stem(path), path)
	if err != nil || found != nil {
		return found, err
	}
	if !s.cfg.Agent.ScrubFilenames {
		return nil, nil
	}
	scrubbed := textutil.ScrubPath(path)
	if scrubbed == path {
		return nil, nil
	}
	return s.catalog.FindVideo(ctx, stem(scrubbed), scrubbed)
}

// reconcile handles a file whose video is already catalogued: a converted
// file returned under a new path is adopted, a conversion that failed or was
// never dispatched is queued again and a playable file gets its thumbnail.
func (s *Scanner) reconcile(ctx context.Context, q dispatch.Enqueuer, video *catalog.Video, path string, sum *Summary) error {
	ctx = services.WithVideoID(ctx, video.ID)
	switch {
	case video.Filename == path && NeedsConversion(path):
		retry, err := s.conversionOutstanding(ctx, path)
		if err != nil || !retry {
			return err
		}
		logging.WithContext(ctx, s.logger).Info("retrying conversion", logging.String("path", path))
		return s.dispatch(ctx, q, video.ID, path, sum)
	case video.Filename != path && IsBrowserFriendly(path) && !video.BrowserFriendly:
		gone, err := missing(video.Filename)
		if err != nil || !gone {
			return err
		}
		updated, err := s.catalog.UpdateVideoFile(ctx, video.ID, path, cdnPath(s.cfg.Paths.MediaDir, path))
		if err != nil {
			return fmt.Errorf("adopt converted file: %w", err)
		}
		sum.Adopted++
		logging.WithContext(ctx, s.logger).Info("converted file adopted",
			logging.String("from", video.Filename),
			logging.String("to", path),
		)
		video = updated
	}
	if video.Filename == path {
		s.thumbnail(ctx, video, sum)
	}
	return nil
}

// conversionOutstanding reports whether path should be dispatched again: its
// ledger row failed, or there is none because the previous dispatch never
// reached the queue. A pending row is owned by a queue or by reconciliation.
func (s *Scanner) conversionOutstanding(ctx context.Context, path string) (bool, error) {
	record, err := s.catalog.ConversionByFilename(ctx, path)
	if err != nil {
		return false, fmt.Errorf("lookup conversion: %w", err)
	}
	return record == nil || record.Status == catalog.ConversionFailed, nil
}

func (s *Scanner) dispatch(ctx context.Context, q dispatch.Enqueuer, videoID int64, path string, sum *Summary) error {
	job := queue.NewJob(path, transcode.OutputPath(path), videoID).WithCategory(dispatch.CategoryOf(path))
	outcome, err := s.router.Dispatch(ctx, q, job)
	if err != nil {
		return fmt.Errorf("dispatch conversion: %w", err)
	}
	if outcome.Queued {
		sum.Queued++
	}
	if outcome.Shipped {
		sum.Shipped++
	}
	return nil
}

func (s *Scanner) remoteVideo(ctx context.Context, q dispatch.Enqueuer, path string, sum *Summary) error {
	if !NeedsConversion(path) {
		return nil
	}
	ready, err := s.ready(ctx, path)
	if err != nil || !ready {
		if err == nil {
			sum.Downloading++
		}
		return err
	}
	return s.dispatch(ctx, q, 0, path, sum)
}

// ready reports whether path has finished arriving. The torrent probe is
// consulted for TV folders on the primary host.
func (s *Scanner) ready(ctx context.Context, path string) (bool, error) {
	if s.torrents != nil && !s.cfg.Agent.RemoteAgent && isTVPath(path) {
		downloading, err := s.torrents.Downloading(ctx, filepath.Dir(path))
		if err != nil {
			logging.WarnWithContext(s.logger, "torrent probe failed", "torrent_probe_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "falling back to the size check"),
			)
		} else if downloading {
			s.logger.Info("tv folder still downloading", logging.String("dir", filepath.Dir(path)))
			return false, nil
		}
	}
	complete, err := s.downloads.Complete(ctx, path)
	if err != nil {
		return false, err
	}
	if !complete {
		s.logger.Info("file still downloading", logging.String("path", path))
	}
	return complete, nil
}

// scrub renames path to its scrubbed name when enabled and the target is free.
func (s *Scanner) scrub(path string) string {
	if !s.cfg.Agent.ScrubFilenames {
		return path
	}
	target := textutil.ScrubPath(path)
	if target == path {
		return path
	}
	if _, err := os.Lstat(target); err == nil {
		s.logger.Warn("scrubbed name already taken, keeping original",
			logging.String("path", path),
			logging.String("target", target),
		)
		return path
	}
	if err := os.Rename(path, target); err != nil {
		s.logger.Warn("rename to scrubbed name failed", logging.String("path", path), logging.Error(err))
		return path
	}
	s.logger.Info("file renamed", logging.String("from", path), logging.String("to", target))
	return target
}

func (s *Scanner) image(ctx context.Context, path string, sum *Summary) error {
	name := filepath.Base(path)
	existing, err := s.catalog.ImageByFileName(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup image: %w", err)
	}
	if existing != nil {
		sum.Skipped++
		return nil
	}
	id, err := s.catalog.AddImage(ctx, &catalog.Image{FileName: name, CDNPath: cdnPath(s.cfg.Paths.MediaDir, path)})
	if err != nil {
		return fmt.Errorf("add image: %w", err)
	}
	sum.Images++
	s.logger.Info("image catalogued", logging.String("path", path), logging.Int64("image_id", id))
	return nil
}

func (s *Scanner) thumbnail(ctx context.Context, video *catalog.Video, sum *Summary) {
	if s.thumbs == nil || !s.cfg.Agent.Thumbnails {
		return
	}
	attached, err := s.thumbs.Ensure(ctx, video)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "thumbnail not generated", "thumbnail_failed",
			logging.String("path", video.Filename),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video is listed without a thumbnail"),
		)
		return
	}
	if attached {
		sum.Thumbnails++
	}
}

// entertainmentType is the first directory under the media root. Files that
// came back from a remote converter use the category under the return tree.
func (s *Scanner) entertainmentType(path string) string {
	base := s.cfg.Paths.MediaDir
	if ret := s.cfg.Agent.ReturnBasePath; ret != "" && within(ret, path) {
		base = ret
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return dispatch.CategoryVideos
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) < 2 {
		return dispatch.CategoryVideos
	}
	return strings.ToLower(segments[0])
}

func isTVPath(path string) bool {
	return strings.Contains(strings.ToLower(filepath.ToSlash(path)), "/"+tvType+"/")
}

// cdnPath returns path relative to the media root with a leading slash.
func cdnPath(mediaDir, path string) string {
	if !within(mediaDir, path) {
		return path
	}
	rel, err := filepath.Rel(mediaDir, path)
	if err != nil {
		return path
	}
	return "/" + filepath.ToSlash(rel)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}

func missing(path string) (bool, error) {
	ok, err := fileutil.Exists(path)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
