package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"mediaagent/internal/catalog"
	"mediaagent/internal/config"
	"mediaagent/internal/logging"
	"mediaagent/internal/media/ffprobe"
	"mediaagent/internal/services"
	"mediaagent/internal/transcode"
)

// Thumbnailer captures the midpoint frame of a video and attaches it as the
// video's thumbnail image.
type Thumbnailer struct {
	ffmpeg    string
	ffprobe   string
	imagesDir string
	mediaDir  string
	runner    transcode.Runner
	probe     transcode.ProbeFunc
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

// NewThumbnailer builds a thumbnailer. runner and probe default to ffmpeg and
// ffprobe on PATH when nil.
func NewThumbnailer(cfg *config.Config, cat *catalog.Catalog, runner transcode.Runner, probe transcode.ProbeFunc, logger *slog.Logger) *Thumbnailer {
	if runner == nil {
		runner = transcode.CommandRunner{}
	}
	if probe == nil {
		probe = ffprobe.Inspect
	}
	return &Thumbnailer{
		ffmpeg:    cfg.Transcode.FFmpegBinary,
		ffprobe:   cfg.Transcode.FFprobeBinary,
		imagesDir: cfg.Paths.ImagesDir,
		mediaDir:  cfg.Paths.MediaDir,
		runner:    runner,
		probe:     probe,
		catalog:   cat,
		logger:    logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// Path returns where the thumbnail of video is written.
func (t *Thumbnailer) Path(video *catalog.Video) string {
	return filepath.Join(t.imagesDir, stem(video.Filename)+"-"+strconv.FormatInt(video.ID, 10)+".jpeg")
}

// Ensure generates a thumbnail for video when it is a browser-friendly file
// without one. It returns true when a thumbnail was attached.
func (t *Thumbnailer) Ensure(ctx context.Context, video *catalog.Video) (bool, error) {
	if video == nil || video.ID == 0 || video.ThumbnailID != 0 || !IsBrowserFriendly(video.Filename) {
		return false, nil
	}
	ctx = services.WithVideoID(ctx, video.ID)
	logger := logging.WithContext(ctx, t.logger)

	result, err := t.probe(ctx, t.ffprobe, video.Filename)
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, "thumbnail", "probe", "ffprobe failed", err)
	}
	if err := result.Playable(); err != nil {
		return false, services.Wrap(services.ErrValidation, "thumbnail", "probe", "video has no video stream", err)
	}

	if err := os.MkdirAll(t.imagesDir, 0o755); err != nil {
		return false, fmt.Errorf("create images dir: %w", err)
	}
	target := t.Path(video)
	timestamp := ffprobe.FormatTimestamp(result.Midpoint())
	if err := t.runner.Run(ctx, t.ffmpeg, transcode.FrameArgs(video.Filename, target, timestamp)...); err != nil {
		_ = os.Remove(target)
		return false, services.Wrap(services.ErrExternalTool, "thumbnail", "extract frame", "ffmpeg could not capture a frame", err)
	}
	if _, err := os.Stat(target); err != nil {
		return false, services.Wrap(services.ErrExternalTool, "thumbnail", "extract frame", "ffmpeg produced no image", err)
	}

	imageID, err := t.catalog.AddImage(ctx, &catalog.Image{
		FileName: filepath.Base(target),
		CDNPath:  cdnPath(t.mediaDir, target),
	})
	if err != nil {
		return false, fmt.Errorf("add thumbnail image: %w", err)
	}
	if _, err := t.catalog.AttachThumbnail(ctx, video.ID, imageID); err != nil {
		return false, fmt.Errorf("attach thumbnail: %w", err)
	}
	video.ThumbnailID = imageID
	logger.Info("thumbnail attached",
		logging.String("image", target),
		logging.String("at", timestamp),
		logging.Int64("image_id", imageID),
	)
	return true, nil
}
