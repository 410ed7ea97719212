package catalog

import "strconv"

var videoSpec = Spec[Video]{
	Kind: "video",
	Keys: func(v *Video) []Key {
		return []Key{{Field: FieldTitle, Value: v.Title}, {Field: FieldFilename, Value: v.Filename}}
	},
	ID:    func(v *Video) int64 { return v.ID },
	SetID: func(v *Video, id int64) { v.ID = id },
}

var imageSpec = Spec[Image]{
	Kind:  "image",
	Keys:  func(i *Image) []Key { return []Key{{Field: FieldFileName, Value: i.FileName}} },
	ID:    func(i *Image) int64 { return i.ID },
	SetID: func(i *Image, id int64) { i.ID = id },
}

var showSpec = Spec[Show]{
	Kind:  "show",
	Keys:  func(s *Show) []Key { return []Key{{Field: FieldShowFolder, Value: s.ShowFolder}} },
	ID:    func(s *Show) int64 { return s.ID },
	SetID: func(s *Show, id int64) { s.ID = id },
}

var seasonSpec = Spec[Season]{
	Kind:  "season",
	Keys:  func(s *Season) []Key { return []Key{PairKey(FieldShowSeason, s.ShowID, s.SeasonNumber)} },
	ID:    func(s *Season) int64 { return s.ID },
	SetID: func(s *Season, id int64) { s.ID = id },
}

var episodeSpec = Spec[Episode]{
	Kind: "episode",
	Keys: func(e *Episode) []Key {
		keys := []Key{PairKey(FieldSeasonEpisode, e.SeasonID, e.EpisodeNumber)}
		if e.VideoID > 0 {
			keys = append([]Key{{Field: FieldVideoID, Value: strconv.FormatInt(e.VideoID, 10)}}, keys...)
		}
		return keys
	},
	ID:    func(e *Episode) int64 { return e.ID },
	SetID: func(e *Episode, id int64) { e.ID = id },
}

var conversionSpec = Spec[Conversion]{
	Kind:  "conversion",
	Keys:  func(c *Conversion) []Key { return []Key{{Field: FieldOriginalFilename, Value: c.OriginalFilename}} },
	ID:    func(c *Conversion) int64 { return c.ID },
	SetID: func(c *Conversion, id int64) { c.ID = id },
}
