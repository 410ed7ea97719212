package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"mediaagent/internal/catalog"
	"mediaagent/internal/logging"
	"mediaagent/internal/textutil"
)

const tvType = "tv"

// episodeRef locates a TV file relative to the media root:
// tv/<show folder>/[<season folder>/]<file>.
type episodeRef struct {
	showFolder string
	showName   string
	season     int
	episode    int
}

func parseEpisodeRef(mediaDir, path string) (episodeRef, bool) {
	rel, err := filepath.Rel(mediaDir, path)
	if err != nil {
		return episodeRef{}, false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) < 3 || !strings.EqualFold(segments[0], tvType) {
		return episodeRef{}, false
	}
	ref := episodeRef{
		showFolder: filepath.Join(mediaDir, segments[0], segments[1]),
		showName:   textutil.DisplayName(segments[1]),
	}
	season, episode, ok := textutil.ParseEpisode(segments[len(segments)-1])
	if !ok {
		return episodeRef{}, false
	}
	ref.episode = episode
	ref.season = season
	if ref.season == 0 && len(segments) >= 4 {
		ref.season = textutil.ParseSeason(segments[len(segments)-2])
	}
	if ref.season == 0 {
		ref.season = 1
	}
	if ref.showName == "" {
		ref.showName = segments[1]
	}
	return ref, true
}

// registerEpisode links a catalogued TV video to its show and season,
// creating either when missing. Files without an episode number are left
// as plain videos.
func (s *Scanner) registerEpisode(ctx context.Context, video *catalog.Video) error {
	ref, ok := parseEpisodeRef(s.cfg.Paths.MediaDir, video.Filename)
	if !ok {
		s.logger.Debug("tv file has no episode number", logging.String("path", video.Filename))
		return nil
	}
	showID, err := s.catalog.AddShow(ctx, &catalog.Show{Name: ref.showName, ShowFolder: ref.showFolder})
	if err != nil {
		return fmt.Errorf("add show %q: %w", ref.showFolder, err)
	}
	seasonID, err := s.catalog.AddSeason(ctx, &catalog.Season{ShowID: showID, SeasonNumber: ref.season})
	if err != nil {
		return fmt.Errorf("add season %d of %q: %w", ref.season, ref.showName, err)
	}
	episodeID, err := s.catalog.AddEpisode(ctx, &catalog.Episode{
		VideoID:       video.ID,
		ShowID:        showID,
		SeasonID:      seasonID,
		EpisodeNumber: ref.episode,
	})
	if err != nil {
		return fmt.Errorf("add episode %d of %q season %d: %w", ref.episode, ref.showName, ref.season, err)
	}
	s.logger.Info("episode registered",
		logging.String("show", ref.showName),
		logging.Int("season", ref.season),
		logging.Int("episode", ref.episode),
		logging.Int64("episode_id", episodeID),
		logging.Int64(logging.FieldVideoID, video.ID),
	)
	return nil
}
