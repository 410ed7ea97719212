package agent_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"mediaagent/internal/agent"
	"mediaagent/internal/catalog"
	"mediaagent/internal/config"
	"mediaagent/internal/media/ffprobe"
	"mediaagent/internal/testsupport"
	"mediaagent/internal/transfer"
)

type fakeFFmpeg struct {
	fail  bool
	calls int
}

func (f *fakeFFmpeg) Run(_ context.Context, _ string, args ...string) error {
	f.calls++
	if f.fail {
		return errors.New("ffmpeg exited with status 1")
	}
	return os.WriteFile(args[len(args)-1], []byte("converted"), 0o644)
}

func videoProbe(context.Context, string, string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video"}},
		Format:  ffprobe.Format{Duration: "120.0"},
	}, nil
}

func newAgent(t *testing.T, cfg *config.Config, ffmpeg *fakeFFmpeg) *agent.Agent {
	t.Helper()
	a, err := agent.Bootstrap(context.Background(), cfg, nil,
		agent.WithHost("primary"),
		agent.WithRunner(ffmpeg),
		agent.WithProbe(videoProbe),
		agent.WithTransports(transfer.NewRouter(nil)),
	)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return a
}

func TestRunCycleConvertsAndRepointsCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ffmpeg := &fakeFFmpeg{}
	a := newAgent(t, cfg, ffmpeg)
	ctx := context.Background()

	input := filepath.Join(cfg.Paths.MediaDir, "movies", "clip.avi")
	testsupport.WriteFile(t, input, 2048)

	report, err := a.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.ID == "" {
		t.Fatal("expected cycle id")
	}
	if report.Scan.Catalogued != 1 || report.Scan.Queued != 1 {
		t.Fatalf("unexpected scan summary %+v", report.Scan)
	}
	if report.Queue.Converted != 1 || report.Queue.Failed != 0 {
		t.Fatalf("unexpected queue stats %+v", report.Queue)
	}

	output := filepath.Join(cfg.Paths.MediaDir, "movies", "clip.mp4")
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output: %v", err)
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Fatalf("expected input removed, stat err=%v", err)
	}
	video, err := a.Catalog().VideoByTitle(ctx, "clip")
	if err != nil || video == nil {
		t.Fatalf("expected catalogued video, got %v %v", video, err)
	}
	if video.Filename != output || !video.BrowserFriendly || video.CDNPath != "/movies/clip.mp4" {
		t.Fatalf("expected catalog repointed at output, got %+v", video)
	}
	row, err := a.Catalog().ConversionByFilename(ctx, input)
	if err != nil || row == nil {
		t.Fatalf("expected ledger row, got %v %v", row, err)
	}
	if row.Status != catalog.ConversionConverted || row.Host != "primary" {
		t.Fatalf("unexpected ledger row %+v", row)
	}

	second, err := a.RunCycle(ctx)
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if second.Scan.Catalogued != 0 || second.Queue.Total() != 0 {
		t.Fatalf("expected idempotent second cycle, got scan=%+v queue=%+v", second.Scan, second.Queue)
	}
	if second.ID == report.ID {
		t.Fatal("expected a new cycle id")
	}
}

func TestRunCycleReportsFailedConversion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Agent.Thumbnails = false
	ffmpeg := &fakeFFmpeg{fail: true}
	a := newAgent(t, cfg, ffmpeg)
	ctx := context.Background()

	input := filepath.Join(cfg.Paths.MediaDir, "videos", "broken.mkv")
	testsupport.WriteFile(t, input, 512)

	report, err := a.RunCycle(ctx)
	if err != nil {
		t.Fatalf("a failed conversion must not fail the cycle: %v", err)
	}
	if report.Queue.Failed != 1 {
		t.Fatalf("expected one failed job, got %+v", report.Queue)
	}
	if ffmpeg.calls != 2 {
		t.Fatalf("expected primary and fallback attempts, got %d", ffmpeg.calls)
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("expected input kept after failure: %v", err)
	}
	row, err := a.Catalog().ConversionByFilename(ctx, input)
	if err != nil || row == nil || row.Status != catalog.ConversionFailed || row.ErrorMessage == "" {
		t.Fatalf("expected failed ledger row with message, got %+v %v", row, err)
	}
}

func TestReconcileSettlesPendingRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a := newAgent(t, cfg, &fakeFFmpeg{})
	ctx := context.Background()
	cat := a.Catalog()
	media := cfg.Paths.MediaDir

	// Output finalized but the process died before the ledger update.
	doneIn := filepath.Join(media, "videos", "done.avi")
	doneOut := filepath.Join(media, "videos", "done.mp4")
	testsupport.WriteFile(t, doneOut, 64)
	videoID, err := cat.AddVideo(ctx, &catalog.Video{Filename: doneIn, Title: "done", EntertainmentType: "videos", CDNPath: "/videos/done.avi"})
	if err != nil {
		t.Fatalf("AddVideo: %v", err)
	}
	doneRow, err := cat.RecordPending(ctx, doneIn, doneOut, videoID)
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}

	// Input still present with a half-written temp file.
	midIn := filepath.Join(media, "videos", "mid.mkv")
	midOut := filepath.Join(media, "videos", "mid.mp4")
	midTemp := filepath.Join(media, "videos", "mid.converting.mp4")
	testsupport.WriteFile(t, midIn, 64)
	testsupport.WriteFile(t, midTemp, 16)
	midRow, err := cat.RecordPending(ctx, midIn, midOut, 0)
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}

	// Neither side exists any more.
	goneRow, err := cat.RecordPending(ctx, filepath.Join(media, "videos", "gone.avi"), filepath.Join(media, "videos", "gone.mp4"), 0)
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}

	stray := filepath.Join(media, "tv", "show", "ep.converting.mp4")
	testsupport.WriteFile(t, stray, 16)

	report, err := a.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := agent.ReconcileReport{Converted: 1, Interrupted: 1, Missing: 1, TempsRemoved: 1}
	if report != want {
		t.Fatalf("unexpected report: got %+v want %+v", report, want)
	}

	tests := []struct {
		name    string
		id      int64
		status  catalog.ConversionStatus
		message string
	}{
		{"output present", doneRow, catalog.ConversionConverted, ""},
		{"input present", midRow, catalog.ConversionFailed, agent.MessageInterrupted},
		{"both missing", goneRow, catalog.ConversionFailed, agent.MessageInputMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := cat.ConversionByID(ctx, tt.id)
			if err != nil || row == nil {
				t.Fatalf("ConversionByID: %v %v", row, err)
			}
			if row.Status != tt.status || row.ErrorMessage != tt.message {
				t.Fatalf("unexpected row %+v", row)
			}
		})
	}

	if _, err := os.Stat(midTemp); !os.IsNotExist(err) {
		t.Fatalf("expected interrupted temp removed, stat err=%v", err)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Fatalf("expected stray temp removed, stat err=%v", err)
	}
	if _, err := os.Stat(midIn); err != nil {
		t.Fatalf("expected interrupted input kept: %v", err)
	}
	video, err := cat.VideoByID(ctx, videoID)
	if err != nil || video == nil || video.Filename != doneOut {
		t.Fatalf("expected video repointed at recovered output, got %+v %v", video, err)
	}
	pending, err := cat.PendingConversions(ctx)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending rows, got %d %v", len(pending), err)
	}
}

func TestRunOnceRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a := newAgent(t, cfg, &fakeFFmpeg{})

	holder := flock.New(cfg.LockPath())
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: %v %v", locked, err)
	}
	t.Cleanup(func() { _ = holder.Unlock() })

	if _, err := a.RunOnce(context.Background()); !errors.Is(err, agent.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := holder.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce after unlock: %v", err)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Agent.ScanInterval = 3600
	cfg.Agent.WatchMedia = true
	cfg.Agent.WatchSettleSeconds = 0
	a := newAgent(t, cfg, &fakeFFmpeg{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		if cycles, _ := a.Counters(); cycles >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first cycle did not start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A new video should trigger an early cycle well before the hour-long interval.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.MediaDir, "videos", "late.mp4"), 128)
	for {
		if cycles, _ := a.Counters(); cycles >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not trigger a cycle")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestHealthReportsStoreAndBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Agent.MinFreeGiB = 0
	a := newAgent(t, cfg, &fakeFFmpeg{})
	ctx := context.Background()

	if _, err := a.Catalog().RecordPending(ctx, filepath.Join(cfg.Paths.MediaDir, "a.avi"), filepath.Join(cfg.Paths.MediaDir, "a.mp4"), 0); err != nil {
		t.Fatalf("RecordPending: %v", err)
	}

	h := a.Health(ctx)
	if !h.Healthy() {
		t.Fatalf("expected healthy agent, got %+v", h)
	}
	if h.Host != "primary" || h.StoreDriver != "sqlite" || h.CacheBackend != "memory" {
		t.Fatalf("unexpected identity %+v", h)
	}
	if h.Conversions[catalog.ConversionPending] != 1 {
		t.Fatalf("expected one pending conversion, got %v", h.Conversions)
	}

	cfg.Transcode.FFmpegBinary = "definitely-not-ffmpeg"
	if env := agent.CheckEnvironment(ctx, cfg); env.Healthy() {
		t.Fatal("expected missing ffmpeg to be unhealthy")
	}
}

func TestBootstrapRejectsUnreachableRedis(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := agent.Bootstrap(ctx, cfg, nil, agent.WithHost("primary")); err == nil {
		t.Fatal("expected redis dial failure")
	}
}
