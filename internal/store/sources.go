package store

import (
	"context"
	"database/sql"
	"fmt"

	"mediaagent/internal/catalog"
)

// where translates a catalog key into a SQL predicate for one table.
func where(kind string, columns map[string]string, pairs map[string][2]string, key catalog.Key) (string, []any, error) {
	if key.Field == catalog.FieldID {
		id, ok := catalog.ParseID(key.Value)
		if !ok {
			return "", nil, fmt.Errorf("%s: invalid id %q", kind, key.Value)
		}
		return "id = ?", []any{id}, nil
	}
	if column, ok := columns[key.Field]; ok {
		return column + " = ?", []any{key.Value}, nil
	}
	if cols, ok := pairs[key.Field]; ok {
		a, b, ok := catalog.ParsePair(key.Value)
		if !ok {
			return "", nil, fmt.Errorf("%s: invalid %s key %q", kind, key.Field, key.Value)
		}
		return cols[0] + " = ? AND " + cols[1] + " = ?", []any{a, b}, nil
	}
	return "", nil, fmt.Errorf("%s: unsupported lookup field %q", kind, key.Field)
}

const videoColumns = "id, filename, cdn_path, title, entertainment_type, thumbnail_id, browser_friendly, uploaded"

func scanVideo(row rowScanner) (*catalog.Video, error) {
	var (
		v         catalog.Video
		thumbnail sql.NullInt64
		friendly  int64
		uploaded  int64
	)
	if err := row.Scan(&v.ID, &v.Filename, &v.CDNPath, &v.Title, &v.EntertainmentType, &thumbnail, &friendly, &uploaded); err != nil {
		return nil, err
	}
	v.ThumbnailID = nullInt(thumbnail)
	v.BrowserFriendly = friendly != 0
	v.Uploaded = uploaded != 0
	return &v, nil
}

type videoSource struct{ s *Store }

func (src videoSource) Lookup(ctx context.Context, key catalog.Key) (*catalog.Video, error) {
	clause, args, err := where("video", map[string]string{
		catalog.FieldTitle:    "title",
		catalog.FieldFilename: "filename",
	}, nil, key)
	if err != nil {
		return nil, err
	}
	video, err := queryOne(ctx, src.s, scanVideo, "SELECT "+videoColumns+" FROM videos WHERE "+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup video %s: %w", key, err)
	}
	return video, nil
}

func (src videoSource) Insert(ctx context.Context, v *catalog.Video) (int64, error) {
	id, err := src.s.insertReturningID(ctx,
		`INSERT INTO videos (filename, cdn_path, title, entertainment_type, thumbnail_id, browser_friendly, uploaded)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Filename, v.CDNPath, v.Title, v.EntertainmentType, nullableID(v.ThumbnailID), boolToInt(v.BrowserFriendly), boolToInt(v.Uploaded),
	)
	if err != nil {
		return 0, fmt.Errorf("insert video %q: %w", v.Filename, err)
	}
	return id, nil
}

const imageColumns = "id, file_name, cdn_path, uploaded"

func scanImage(row rowScanner) (*catalog.Image, error) {
	var (
		img      catalog.Image
		uploaded int64
	)
	if err := row.Scan(&img.ID, &img.FileName, &img.CDNPath, &uploaded); err != nil {
		return nil, err
	}
	img.Uploaded = uploaded != 0
	return &img, nil
}

type imageSource struct{ s *Store }

func (src imageSource) Lookup(ctx context.Context, key catalog.Key) (*catalog.Image, error) {
	clause, args, err := where("image", map[string]string{catalog.FieldFileName: "file_name"}, nil, key)
	if err != nil {
		return nil, err
	}
	img, err := queryOne(ctx, src.s, scanImage, "SELECT "+imageColumns+" FROM images WHERE "+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup image %s: %w", key, err)
	}
	return img, nil
}

func (src imageSource) Insert(ctx context.Context, img *catalog.Image) (int64, error) {
	id, err := src.s.insertReturningID(ctx,
		`INSERT INTO images (file_name, cdn_path, uploaded) VALUES (?, ?, ?)`,
		img.FileName, img.CDNPath, boolToInt(img.Uploaded),
	)
	if err != nil {
		return 0, fmt.Errorf("insert image %q: %w", img.FileName, err)
	}
	return id, nil
}

const showColumns = "id, name, description, thumbnail_id, show_folder"

func scanShow(row rowScanner) (*catalog.Show, error) {
	var (
		show        catalog.Show
		description sql.NullString
		thumbnail   sql.NullInt64
	)
	if err := row.Scan(&show.ID, &show.Name, &description, &thumbnail, &show.ShowFolder); err != nil {
		return nil, err
	}
	show.Description = description.String
	show.ThumbnailID = nullInt(thumbnail)
	return &show, nil
}

type showSource struct{ s *Store }

func (src showSource) Lookup(ctx context.Context, key catalog.Key) (*catalog.Show, error) {
	clause, args, err := where("show", map[string]string{catalog.FieldShowFolder: "show_folder"}, nil, key)
	if err != nil {
		return nil, err
	}
	show, err := queryOne(ctx, src.s, scanShow, "SELECT "+showColumns+" FROM shows WHERE "+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup show %s: %w", key, err)
	}
	return show, nil
}

func (src showSource) Insert(ctx context.Context, show *catalog.Show) (int64, error) {
	id, err := src.s.insertReturningID(ctx,
		`INSERT INTO shows (name, description, thumbnail_id, show_folder) VALUES (?, ?, ?, ?)`,
		show.Name, nullableString(show.Description), nullableID(show.ThumbnailID), show.ShowFolder,
	)
	if err != nil {
		return 0, fmt.Errorf("insert show %q: %w", show.ShowFolder, err)
	}
	return id, nil
}

func scanSeason(row rowScanner) (*catalog.Season, error) {
	var season catalog.Season
	if err := row.Scan(&season.ID, &season.ShowID, &season.SeasonNumber); err != nil {
		return nil, err
	}
	return &season, nil
}

type seasonSource struct{ s *Store }

func (src seasonSource) Lookup(ctx context.Context, key catalog.Key) (*catalog.Season, error) {
	clause, args, err := where("season", nil, map[string][2]string{
		catalog.FieldShowSeason: {"show_id", "season_number"},
	}, key)
	if err != nil {
		return nil, err
	}
	season, err := queryOne(ctx, src.s, scanSeason, "SELECT id, show_id, season_number FROM seasons WHERE "+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup season %s: %w", key, err)
	}
	return season, nil
}

func (src seasonSource) Insert(ctx context.Context, season *catalog.Season) (int64, error) {
	id, err := src.s.insertReturningID(ctx,
		`INSERT INTO seasons (show_id, season_number) VALUES (?, ?)`,
		season.ShowID, season.SeasonNumber,
	)
	if err != nil {
		return 0, fmt.Errorf("insert season %d/%d: %w", season.ShowID, season.SeasonNumber, err)
	}
	return id, nil
}

const episodeColumns = "id, video_id, show_id, season_id, episode_number, description"

func scanEpisode(row rowScanner) (*catalog.Episode, error) {
	var (
		ep          catalog.Episode
		description sql.NullString
	)
	if err := row.Scan(&ep.ID, &ep.VideoID, &ep.ShowID, &ep.SeasonID, &ep.EpisodeNumber, &description); err != nil {
		return nil, err
	}
	ep.Description = description.String
	return &ep, nil
}

type episodeSource struct{ s *Store }

func (src episodeSource) Lookup(ctx context.Context, key catalog.Key) (*catalog.Episode, error) {
	if key.Field == catalog.FieldVideoID {
		id, ok := catalog.ParseID(key.Value)
		if !ok {
			return nil, fmt.Errorf("episode: invalid video id %q", key.Value)
		}
		ep, err := queryOne(ctx, src.s, scanEpisode, "SELECT "+episodeColumns+" FROM episodes WHERE video_id = ? LIMIT 1", id)
		if err != nil {
			return nil, fmt.Errorf("lookup episode %s: %w", key, err)
		}
		return ep, nil
	}
	clause, args, err := where("episode", nil, map[string][2]string{
		catalog.FieldSeasonEpisode: {"season_id", "episode_number"},
	}, key)
	if err != nil {
		return nil, err
	}
	ep, err := queryOne(ctx, src.s, scanEpisode, "SELECT "+episodeColumns+" FROM episodes WHERE "+clause+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("lookup episode %s: %w", key, err)
	}
	return ep, nil
}

func (src episodeSource) Insert(ctx context.Context, ep *catalog.Episode) (int64, error) {
	id, err := src.s.insertReturningID(ctx,
		`INSERT INTO episodes (video_id, show_id, season_id, episode_number, description) VALUES (?, ?, ?, ?, ?)`,
		ep.VideoID, ep.ShowID, ep.SeasonID, ep.EpisodeNumber, nullableString(ep.Description),
	)
	if err != nil {
		return 0, fmt.Errorf("insert episode for video %d: %w", ep.VideoID, err)
	}
	return id, nil
}

// Videos returns the video source.
func (s *Store) Videos() catalog.Source[catalog.Video] { return videoSource{s: s} }

// Images returns the image source.
func (s *Store) Images() catalog.Source[catalog.Image] { return imageSource{s: s} }

// Shows returns the show source.
func (s *Store) Shows() catalog.Source[catalog.Show] { return showSource{s: s} }

// Seasons returns the season source.
func (s *Store) Seasons() catalog.Source[catalog.Season] { return seasonSource{s: s} }

// Episodes returns the episode source.
func (s *Store) Episodes() catalog.Source[catalog.Episode] { return episodeSource{s: s} }

// UpdateVideoFile rewrites the storage location of a video after conversion.
func (s *Store) UpdateVideoFile(ctx context.Context, id int64, filename, cdnPath string, browserFriendly bool) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET filename = ?, cdn_path = ?, browser_friendly = ? WHERE id = ?`,
		filename, cdnPath, boolToInt(browserFriendly), id,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update video %d: %w", id, catalog.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update video %d: %w", id, err)
	}
	return expectAffected(res, "video", id)
}

// UpdateVideoThumbnail attaches a thumbnail image to a video.
func (s *Store) UpdateVideoThumbnail(ctx context.Context, id, imageID int64) error {
	res, err := s.execWithRetry(ctx, `UPDATE videos SET thumbnail_id = ? WHERE id = ?`, nullableID(imageID), id)
	if err != nil {
		return fmt.Errorf("update video %d thumbnail: %w", id, err)
	}
	return expectAffected(res, "video", id)
}
