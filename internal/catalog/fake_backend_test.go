package catalog_test

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"mediaagent/internal/catalog"
)

type fakeSource[T any] struct {
	mu        sync.Mutex
	rows      map[int64]*T
	nextID    int64
	keys      func(*T) []catalog.Key
	setID     func(*T, int64)
	lookups   int
	inserts   int
	insertErr error
	lookupErr error
}

func newFakeSource[T any](keys func(*T) []catalog.Key, setID func(*T, int64)) *fakeSource[T] {
	return &fakeSource[T]{rows: make(map[int64]*T), keys: keys, setID: setID}
}

func (f *fakeSource[T]) Lookup(_ context.Context, key catalog.Key) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for id, row := range f.rows {
		if key.Field == catalog.FieldID && key.Value == strconv.FormatInt(id, 10) {
			cp := *row
			return &cp, nil
		}
		for _, k := range f.keys(row) {
			if k == key {
				cp := *row
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeSource[T]) Insert(_ context.Context, value *T) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	for _, row := range f.rows {
		for _, existing := range f.keys(row) {
			for _, candidate := range f.keys(value) {
				if existing == candidate {
					return 0, catalog.ErrDuplicate
				}
			}
		}
	}
	f.nextID++
	cp := *value
	f.setID(&cp, f.nextID)
	f.rows[f.nextID] = &cp
	return f.nextID, nil
}

// put seeds a row directly, as another agent writing to the shared store would.
func (f *fakeSource[T]) put(value T) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.setID(&value, f.nextID)
	f.rows[f.nextID] = &value
	return f.nextID
}

func (f *fakeSource[T]) get(id int64) *T {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	if row == nil {
		return nil
	}
	cp := *row
	return &cp
}

type fakeBackend struct {
	videos      *fakeSource[catalog.Video]
	images      *fakeSource[catalog.Image]
	shows       *fakeSource[catalog.Show]
	seasons     *fakeSource[catalog.Season]
	episodes    *fakeSource[catalog.Episode]
	conversions *fakeSource[catalog.Conversion]
	updateErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		videos: newFakeSource(func(v *catalog.Video) []catalog.Key {
			return []catalog.Key{{Field: catalog.FieldTitle, Value: v.Title}, {Field: catalog.FieldFilename, Value: v.Filename}}
		}, func(v *catalog.Video, id int64) { v.ID = id }),
		images: newFakeSource(func(i *catalog.Image) []catalog.Key {
			return []catalog.Key{{Field: catalog.FieldFileName, Value: i.FileName}}
		}, func(i *catalog.Image, id int64) { i.ID = id }),
		shows: newFakeSource(func(s *catalog.Show) []catalog.Key {
			return []catalog.Key{{Field: catalog.FieldShowFolder, Value: s.ShowFolder}}
		}, func(s *catalog.Show, id int64) { s.ID = id }),
		seasons: newFakeSource(func(s *catalog.Season) []catalog.Key {
			return []catalog.Key{catalog.PairKey(catalog.FieldShowSeason, s.ShowID, s.SeasonNumber)}
		}, func(s *catalog.Season, id int64) { s.ID = id }),
		episodes: newFakeSource(func(e *catalog.Episode) []catalog.Key {
			return []catalog.Key{
				{Field: catalog.FieldVideoID, Value: strconv.FormatInt(e.VideoID, 10)},
				catalog.PairKey(catalog.FieldSeasonEpisode, e.SeasonID, e.EpisodeNumber),
			}
		}, func(e *catalog.Episode, id int64) { e.ID = id }),
		conversions: newFakeSource(func(c *catalog.Conversion) []catalog.Key {
			return []catalog.Key{{Field: catalog.FieldOriginalFilename, Value: c.OriginalFilename}}
		}, func(c *catalog.Conversion, id int64) { c.ID = id }),
	}
}

func (b *fakeBackend) Videos() catalog.Source[catalog.Video]           { return b.videos }
func (b *fakeBackend) Images() catalog.Source[catalog.Image]           { return b.images }
func (b *fakeBackend) Shows() catalog.Source[catalog.Show]             { return b.shows }
func (b *fakeBackend) Seasons() catalog.Source[catalog.Season]         { return b.seasons }
func (b *fakeBackend) Episodes() catalog.Source[catalog.Episode]       { return b.episodes }
func (b *fakeBackend) Conversions() catalog.Source[catalog.Conversion] { return b.conversions }

func (b *fakeBackend) UpdateVideoFile(_ context.Context, id int64, filename, cdnPath string, browserFriendly bool) error {
	if b.updateErr != nil {
		return b.updateErr
	}
	b.videos.mu.Lock()
	defer b.videos.mu.Unlock()
	row := b.videos.rows[id]
	row.Filename = filename
	row.CDNPath = cdnPath
	row.BrowserFriendly = browserFriendly
	return nil
}

func (b *fakeBackend) UpdateVideoThumbnail(_ context.Context, id, imageID int64) error {
	b.videos.mu.Lock()
	defer b.videos.mu.Unlock()
	b.videos.rows[id].ThumbnailID = imageID
	return nil
}

func (b *fakeBackend) ResetConversion(_ context.Context, id int64, convertedFilename string, videoID int64, host string) error {
	b.conversions.mu.Lock()
	defer b.conversions.mu.Unlock()
	row := b.conversions.rows[id]
	row.ConvertedFilename = convertedFilename
	row.OriginalVideoID = videoID
	row.Host = host
	row.Status = catalog.ConversionPending
	row.ErrorMessage = ""
	return nil
}

func (b *fakeBackend) UpdateConversionStatus(_ context.Context, id int64, status catalog.ConversionStatus, message string) error {
	b.conversions.mu.Lock()
	defer b.conversions.mu.Unlock()
	row := b.conversions.rows[id]
	row.Status = status
	row.ErrorMessage = message
	return nil
}

func (b *fakeBackend) ListConversions(_ context.Context, status catalog.ConversionStatus, host string) ([]catalog.Conversion, error) {
	b.conversions.mu.Lock()
	defer b.conversions.mu.Unlock()
	var out []catalog.Conversion
	for _, row := range b.conversions.rows {
		if status != "" && row.Status != status {
			continue
		}
		if host != "" && row.Host != host {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
