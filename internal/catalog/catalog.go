package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Backend is the durable store: one Source per kind plus the partial updates
// the pipeline performs.
type Backend interface {
	Videos() Source[Video]
	Images() Source[Image]
	Shows() Source[Show]
	Seasons() Source[Season]
	Episodes() Source[Episode]
	Conversions() Source[Conversion]

	UpdateVideoFile(ctx context.Context, id int64, filename, cdnPath string, browserFriendly bool) error
	UpdateVideoThumbnail(ctx context.Context, id, imageID int64) error
	ResetConversion(ctx context.Context, id int64, convertedFilename string, videoID int64, host string) error
	UpdateConversionStatus(ctx context.Context, id int64, status ConversionStatus, message string) error
	ListConversions(ctx context.Context, status ConversionStatus, host string) ([]Conversion, error)
}

// Catalog is the facade the pipeline reads and writes through.
type Catalog struct {
	backend     Backend
	host        string
	videos      *Table[Video]
	images      *Table[Image]
	shows       *Table[Show]
	seasons     *Table[Season]
	episodes    *Table[Episode]
	conversions *Table[Conversion]
}

// New wires a catalog. host identifies this agent on ledger rows.
func New(backend Backend, caches Caches, host string) *Catalog {
	return &Catalog{
		backend:     backend,
		host:        host,
		videos:      NewTable(videoSpec, backend.Videos(), caches.Videos),
		images:      NewTable(imageSpec, backend.Images(), caches.Images),
		shows:       NewTable(showSpec, backend.Shows(), caches.Shows),
		seasons:     NewTable(seasonSpec, backend.Seasons(), caches.Seasons),
		episodes:    NewTable(episodeSpec, backend.Episodes(), caches.Episodes),
		conversions: NewTable(conversionSpec, backend.Conversions(), caches.Conversions),
	}
}

// Host returns the agent identity stamped on ledger rows.
func (c *Catalog) Host() string {
	return c.host
}

// VideoByTitle returns the video whose title matches, or nil.
func (c *Catalog) VideoByTitle(ctx context.Context, title string) (*Video, error) {
	return c.videos.Get(ctx, Key{Field: FieldTitle, Value: title})
}

// VideoByFilename returns the video stored at path, or nil.
func (c *Catalog) VideoByFilename(ctx context.Context, path string) (*Video, error) {
	return c.videos.Get(ctx, Key{Field: FieldFilename, Value: path})
}

// VideoByID returns the video with id, or nil.
func (c *Catalog) VideoByID(ctx context.Context, id int64) (*Video, error) {
	return c.videos.Get(ctx, IDKey(id))
}

// FindVideo matches by title first and by storage path second.
func (c *Catalog) FindVideo(ctx context.Context, title, path string) (*Video, error) {
	if title != "" {
		video, err := c.VideoByTitle(ctx, title)
		if err != nil || video != nil {
			return video, err
		}
	}
	if path == "" {
		return nil, nil
	}
	return c.VideoByFilename(ctx, path)
}

// AddVideo registers v, returning the existing id when its title or filename is known.
func (c *Catalog) AddVideo(ctx context.Context, v *Video) (int64, error) {
	return c.videos.Add(ctx, v)
}

// AttachThumbnail points a video at its generated thumbnail image.
func (c *Catalog) AttachThumbnail(ctx context.Context, videoID, imageID int64) (*Video, error) {
	return c.videos.Update(ctx, IDKey(videoID),
		func(ctx context.Context, v *Video) error {
			return c.backend.UpdateVideoThumbnail(ctx, v.ID, v.ThumbnailID)
		},
		func(v *Video) { v.ThumbnailID = imageID },
	)
}

// UpdateVideoFile rewrites the storage path after a conversion. The old
// filename key is evicted from the cache.
func (c *Catalog) UpdateVideoFile(ctx context.Context, videoID int64, newPath, cdnPath string) (*Video, error) {
	return c.videos.Update(ctx, IDKey(videoID),
		func(ctx context.Context, v *Video) error {
			return c.backend.UpdateVideoFile(ctx, v.ID, v.Filename, v.CDNPath, v.BrowserFriendly)
		},
		func(v *Video) {
			v.Filename = newPath
			if cdnPath != "" {
				v.CDNPath = cdnPath
			}
			v.BrowserFriendly = true
		},
	)
}

// ImageByFileName returns the image registered under its base name, or nil.
func (c *Catalog) ImageByFileName(ctx context.Context, name string) (*Image, error) {
	return c.images.Get(ctx, Key{Field: FieldFileName, Value: name})
}

// AddImage registers img, returning the existing id when its file name is known.
func (c *Catalog) AddImage(ctx context.Context, img *Image) (int64, error) {
	return c.images.Add(ctx, img)
}

// ShowByFolder returns the show for a tv/ folder name, or nil.
func (c *Catalog) ShowByFolder(ctx context.Context, folder string) (*Show, error) {
	return c.shows.Get(ctx, Key{Field: FieldShowFolder, Value: folder})
}

// AddShow registers s keyed by its folder.
func (c *Catalog) AddShow(ctx context.Context, s *Show) (int64, error) {
	return c.shows.Add(ctx, s)
}

// Season returns season number of the show, or nil.
func (c *Catalog) Season(ctx context.Context, showID int64, number int) (*Season, error) {
	return c.seasons.Get(ctx, PairKey(FieldShowSeason, showID, number))
}

// AddSeason registers s keyed by show and season number.
func (c *Catalog) AddSeason(ctx context.Context, s *Season) (int64, error) {
	return c.seasons.Add(ctx, s)
}

// EpisodeByVideo returns the episode backed by videoID, or nil.
func (c *Catalog) EpisodeByVideo(ctx context.Context, videoID int64) (*Episode, error) {
	return c.episodes.Get(ctx, Key{Field: FieldVideoID, Value: strconv.FormatInt(videoID, 10)})
}

// AddEpisode registers e; a video backs at most one episode.
func (c *Catalog) AddEpisode(ctx context.Context, e *Episode) (int64, error) {
	return c.episodes.Add(ctx, e)
}

// ConversionByID returns the ledger row with id, or nil.
func (c *Catalog) ConversionByID(ctx context.Context, id int64) (*Conversion, error) {
	return c.conversions.Get(ctx, IDKey(id))
}

// ConversionByFilename returns the ledger row for an original input path, or nil.
func (c *Catalog) ConversionByFilename(ctx context.Context, originalFilename string) (*Conversion, error) {
	return c.conversions.Get(ctx, Key{Field: FieldOriginalFilename, Value: originalFilename})
}

// UpdateConversion records a conversion outcome.
func (c *Catalog) UpdateConversion(ctx context.Context, id int64, status ConversionStatus, message string) (*Conversion, error) {
	if _, ok := ParseConversionStatus(string(status)); !ok {
		return nil, fmt.Errorf("conversion %d: invalid status %q", id, status)
	}
	return c.conversions.Update(ctx, IDKey(id),
		func(ctx context.Context, conv *Conversion) error {
			return c.backend.UpdateConversionStatus(ctx, conv.ID, conv.Status, conv.ErrorMessage)
		},
		func(conv *Conversion) {
			conv.Status = status
			conv.ErrorMessage = strings.TrimSpace(message)
		},
	)
}

// RecordPending writes the pending ledger row for a job. A file seen before
// reuses its row, which is reset to pending.
func (c *Catalog) RecordPending(ctx context.Context, input, output string, videoID int64) (int64, error) {
	existing, err := c.ConversionByFilename(ctx, input)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		conv := &Conversion{
			OriginalVideoID:   videoID,
			OriginalFilename:  input,
			ConvertedFilename: output,
			Status:            ConversionPending,
			Host:              c.host,
		}
		id, err := c.conversions.Add(ctx, conv)
		if err != nil {
			return 0, err
		}
		// Add returns an existing id without writing when another agent raced us.
		if conv.ID == 0 {
			return id, c.resetConversion(ctx, id, output, videoID)
		}
		return id, nil
	}
	return existing.ID, c.resetConversion(ctx, existing.ID, output, videoID)
}

func (c *Catalog) resetConversion(ctx context.Context, id int64, output string, videoID int64) error {
	_, err := c.conversions.Update(ctx, IDKey(id),
		func(ctx context.Context, conv *Conversion) error {
			return c.backend.ResetConversion(ctx, conv.ID, conv.ConvertedFilename, conv.OriginalVideoID, conv.Host)
		},
		func(conv *Conversion) {
			conv.ConvertedFilename = output
			if videoID > 0 {
				conv.OriginalVideoID = videoID
			}
			conv.Status = ConversionPending
			conv.ErrorMessage = ""
			conv.Host = c.host
		},
	)
	return err
}

// RecordOutcome writes the terminal status of a ledger row.
func (c *Catalog) RecordOutcome(ctx context.Context, id int64, status ConversionStatus, message string) error {
	_, err := c.UpdateConversion(ctx, id, status, message)
	return err
}

// Conversions lists ledger rows newest first. An empty status lists every row;
// an empty host lists every agent.
func (c *Catalog) Conversions(ctx context.Context, status ConversionStatus, host string) ([]Conversion, error) {
	return c.backend.ListConversions(ctx, status, host)
}

// PendingConversions lists rows this agent left pending.
func (c *Catalog) PendingConversions(ctx context.Context) ([]Conversion, error) {
	return c.backend.ListConversions(ctx, ConversionPending, c.host)
}

// IsNotFound reports whether err came from an update of a missing entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
