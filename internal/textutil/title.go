package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	episodeCode = regexp.MustCompile(`(?i)S(\d{1,2})[ ._-]?E(\d{1,3})`)
	episodeX    = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	seasonWord  = regexp.MustCompile(`(?i)season[ ._-]*(\d{1,2})`)
	episodeWord = regexp.MustCompile(`(?i)(?:episode|ep)[ ._-]*(\d{1,3})`)
	titleCaser  = cases.Title(language.Und)
)

// DisplayName turns a folder or file stem into a title-cased name.
// Separators collapse to single spaces.
func DisplayName(value string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' || r == '&':
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return ""
	}
	return titleCaser.String(name)
}

// ParseEpisode extracts season and episode numbers from name. It accepts
// S01E02, 1x02 and the "Season N" / "Episode M" words. ok is false when no
// episode number is found.
func ParseEpisode(name string) (season, episode int, ok bool) {
	if m := episodeCode.FindStringSubmatch(name); m != nil {
		return atoi(m[1]), atoi(m[2]), true
	}
	if m := episodeX.FindStringSubmatch(name); m != nil {
		return atoi(m[1]), atoi(m[2]), true
	}
	m := episodeWord.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	episode = atoi(m[1])
	season = ParseSeason(name)
	return season, episode, episode > 0
}

// ParseSeason returns the number following "Season" in value, or 0.
func ParseSeason(value string) int {
	if m := seasonWord.FindStringSubmatch(value); m != nil {
		return atoi(m[1])
	}
	return 0
}

func atoi(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
