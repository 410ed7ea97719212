package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaagent/internal/config"
)

func TestDownloadCheckDetectsGrowingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "film.mkv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	growing := DownloadCheck{Interval: time.Second, sleep: func(context.Context, time.Duration) error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.WriteString("more")
		return err
	}}
	done, err := growing.Complete(context.Background(), path)
	if err != nil || done {
		t.Fatalf("expected growing file incomplete, got %v %v", done, err)
	}

	steady := DownloadCheck{Interval: time.Second, sleep: func(context.Context, time.Duration) error { return nil }}
	done, err = steady.Complete(context.Background(), path)
	if err != nil || !done {
		t.Fatalf("expected steady file complete, got %v %v", done, err)
	}

	done, err = steady.Complete(context.Background(), path+".part")
	if err != nil || done {
		t.Fatalf("expected partial suffix incomplete, got %v %v", done, err)
	}
	done, err = steady.Complete(context.Background(), filepath.Join(filepath.Dir(path), "gone.mkv"))
	if err != nil || done {
		t.Fatalf("expected missing file incomplete, got %v %v", done, err)
	}
}

func TestDownloadCheckHonoursCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "film.mkv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDownloadCheck(time.Hour).Complete(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

const torrentList = `    ID   Done       Have  ETA           Up    Down  Ratio  Status       Name
     1   100%   1.20 GB  Done         0.0     0.0    1.2  Idle         The Show S01
     2*   45%   600 MB   10 min       0.0  1200.0    0.0  Downloading  The Show S02
Sum:            1.80 GB               0.0  1200.0
`

func torrentInfo(location, percent string) string {
	return "NAME\n  Id: 1\n  Name: The Show\nTRANSFER\n  State: Idle\n  Location: " + location + "\n  Percent Done: " + percent + "\n"
}

func TestParseTorrentOutput(t *testing.T) {
	ids := parseTorrentIDs([]byte(torrentList))
	if strings.Join(ids, ",") != "1,2" {
		t.Fatalf("unexpected ids %v", ids)
	}
	location, percent := parseTorrentInfo([]byte(torrentInfo("/mnt/ext1/tv/The Show", "45%")))
	if location != "/mnt/ext1/tv/The Show" || percent != "45%" {
		t.Fatalf("unexpected info %q %q", location, percent)
	}
}

func TestTransmissionDownloading(t *testing.T) {
	cfg := config.Default()
	cfg.Transmission.Enabled = true
	cfg.Transmission.Auth = "pi:secret"
	var calls []string
	output := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		switch args[len(args)-1] {
		case "-l":
			return []byte(torrentList), nil
		case "-i":
			if args[len(args)-2] == "2" {
				return []byte(torrentInfo("/mnt/ext1/tv/season2/", "45%")), nil
			}
			return []byte(torrentInfo("/mnt/ext1/tv/season1", "100%")), nil
		}
		return nil, errors.New("unexpected call")
	}
	probe := NewTransmission(&cfg, output)
	if probe == nil {
		t.Fatal("expected probe")
	}

	busy, err := probe.Downloading(context.Background(), "/mnt/ext1/tv/season2")
	if err != nil || !busy {
		t.Fatalf("expected season2 downloading, got %v %v", busy, err)
	}
	busy, err = probe.Downloading(context.Background(), "/mnt/ext1/tv/season1")
	if err != nil || busy {
		t.Fatalf("expected season1 complete, got %v %v", busy, err)
	}
	if !strings.HasPrefix(calls[0], "transmission-remote --auth pi:secret -l") {
		t.Fatalf("unexpected first call %q", calls[0])
	}

	cfg.Agent.RemoteAgent = true
	if NewTransmission(&cfg, output) != nil {
		t.Fatal("expected no probe on a remote agent")
	}
}

func TestParseEpisodeRef(t *testing.T) {
	media := "/mnt/ext1"
	tests := []struct {
		path    string
		ok      bool
		folder  string
		season  int
		episode int
	}{
		{"/mnt/ext1/tv/the_show/Season 3/ep 4.mkv", true, "/mnt/ext1/tv/the_show", 3, 4},
		{"/mnt/ext1/tv/the_show/the_show_s02e10.mp4", true, "/mnt/ext1/tv/the_show", 2, 10},
		{"/mnt/ext1/tv/the_show/episode 7.mp4", true, "/mnt/ext1/tv/the_show", 1, 7},
		{"/mnt/ext1/tv/loose.mp4", false, "", 0, 0},
		{"/mnt/ext1/movies/film/part S01E01.mp4", false, "", 0, 0},
		{"/mnt/ext1/tv/the_show/trailer.mp4", false, "", 0, 0},
	}
	for _, tt := range tests {
		ref, ok := parseEpisodeRef(media, tt.path)
		if ok != tt.ok {
			t.Fatalf("parseEpisodeRef(%q) ok=%v, want %v", tt.path, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if ref.showFolder != tt.folder || ref.season != tt.season || ref.episode != tt.episode {
			t.Fatalf("parseEpisodeRef(%q) = %+v", tt.path, ref)
		}
	}
}

func TestCDNPathAndEntertainmentType(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.MediaDir = "/mnt/ext1"
	cfg.Agent.ReturnBasePath = "/mnt/ext1/torrents"
	s := &Scanner{cfg: &cfg}

	if got := cdnPath("/mnt/ext1", "/mnt/ext1/movies/a.mp4"); got != "/movies/a.mp4" {
		t.Fatalf("unexpected cdn path %q", got)
	}
	if got := cdnPath("/mnt/ext1", "/srv/other/a.mp4"); got != "/srv/other/a.mp4" {
		t.Fatalf("expected path outside media root kept, got %q", got)
	}
	tests := map[string]string{
		"/mnt/ext1/movies/a.mp4":       "movies",
		"/mnt/ext1/TV/show/a.mp4":      "tv",
		"/mnt/ext1/torrents/tv/a.mp4":  "tv",
		"/mnt/ext1/loose.mp4":          "videos",
		"/mnt/ext1/torrents/loose.mp4": "videos",
	}
	for path, want := range tests {
		if got := s.entertainmentType(path); got != want {
			t.Fatalf("entertainmentType(%q) = %q, want %q", path, got, want)
		}
	}
}
