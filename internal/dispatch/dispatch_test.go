package dispatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaagent/internal/config"
	"mediaagent/internal/dispatch"
	"mediaagent/internal/logging"
	"mediaagent/internal/queue"
	"mediaagent/internal/testsupport"
	"mediaagent/internal/transfer"
)

// hostFS roots every remote path under a per-host temp directory so tests
// can tell which host received a file.
type hostFS struct {
	root    string
	inner   transfer.Transport
	free    uint64
	failPut bool
}

func (h *hostFS) path(p string) string { return filepath.Join(h.root, p) }

func (h *hostFS) FreeSpace(ctx context.Context, dir string) (uint64, error) {
	if h.free > 0 {
		return h.free, nil
	}
	return h.inner.FreeSpace(ctx, h.path(dir))
}

func (h *hostFS) Exists(ctx context.Context, p string) (bool, error) {
	return h.inner.Exists(ctx, h.path(p))
}

func (h *hostFS) MkdirAll(ctx context.Context, dir string) error {
	return h.inner.MkdirAll(ctx, h.path(dir))
}

func (h *hostFS) Put(ctx context.Context, local, remote string) (int64, error) {
	if h.failPut {
		return 0, errors.New("connection reset")
	}
	return h.inner.Put(ctx, local, h.path(remote))
}

func (h *hostFS) Close() error { return nil }

type fleet struct {
	base    string
	hosts   map[string]*hostFS
	dropped []string
}

func newFleet(t *testing.T) *fleet {
	return &fleet{base: t.TempDir(), hosts: make(map[string]*hostFS)}
}

func (f *fleet) host(name string) *hostFS {
	h, ok := f.hosts[name]
	if !ok {
		h = &hostFS{root: filepath.Join(f.base, name), inner: transfer.NewLocal()}
		f.hosts[name] = h
	}
	return h
}

func (f *fleet) For(_ context.Context, host string) (transfer.Transport, error) {
	return f.host(host), nil
}

func (f *fleet) Drop(host string) { f.dropped = append(f.dropped, host) }

// recordingQueue captures jobs routed locally.
type recordingQueue struct{ jobs []*queue.Job }

func (q *recordingQueue) Enqueue(_ context.Context, job *queue.Job) (bool, error) {
	q.jobs = append(q.jobs, job)
	return true, nil
}

func newDispatcher(t *testing.T, f *fleet, opts ...testsupport.ConfigOption) (*config.Config, *dispatch.Dispatcher) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Agent.RemoteConversionDir = "/conversions"
	cfg.Agent.MinFreeGiB = 0
	policy := dispatch.NewPolicy(cfg.Agent.RemoteAgent, dispatch.NewRoster(cfg.Agent.RemoteHosts))
	return cfg, dispatch.New(cfg, policy, f, logging.NewNop())
}

func TestPolicyBudgetFallsBackToLocal(t *testing.T) {
	policy := dispatch.NewPolicy(false, dispatch.NewRoster([]string{"host1", "host2"}))

	var got []string
	for range 4 {
		d := policy.Decide()
		if d.Route == dispatch.RouteLocal {
			got = append(got, "local")
			continue
		}
		got = append(got, d.Host)
	}
	if strings.Join(got, ",") != "host1,host2,local,host1" {
		t.Fatalf("unexpected routing sequence %v", got)
	}
	if policy.Budget() != 1 {
		t.Fatalf("expected budget 1 after refill and one remote, got %d", policy.Budget())
	}
	policy.ResetBudget()
	if policy.Budget() != 2 {
		t.Fatalf("expected budget reset to roster size, got %d", policy.Budget())
	}
}

func TestPolicyRoundRobinIsFair(t *testing.T) {
	hosts := []string{"a", "b", "c"}
	policy := dispatch.NewPolicy(false, dispatch.NewRoster(hosts))
	counts := map[string]int{}
	for range 40 {
		if d := policy.Decide(); d.Route == dispatch.RouteRemote {
			counts[d.Host]++
		}
	}
	// 40 decisions = 10 rounds of three remote plus one local.
	for _, h := range hosts {
		if counts[h] != 10 {
			t.Fatalf("expected 10 jobs per host, got %v", counts)
		}
	}
}

func TestPolicyLocalOnly(t *testing.T) {
	tests := []struct {
		name   string
		policy *dispatch.Policy
	}{
		{"remote agent", dispatch.NewPolicy(true, dispatch.NewRoster([]string{"host1"}))},
		{"empty roster", dispatch.NewPolicy(false, dispatch.NewRoster(nil))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 3 {
				if d := tt.policy.Decide(); d.Route != dispatch.RouteLocal {
					t.Fatalf("expected local route, got %+v", d)
				}
			}
		})
	}
}

func TestRosterHostsIsCopy(t *testing.T) {
	src := []string{"a", "b"}
	roster := dispatch.NewRoster(src)
	src[0] = "z"
	hosts := roster.Hosts()
	hosts[1] = "y"
	if got := strings.Join(roster.Hosts(), ","); got != "a,b" {
		t.Fatalf("roster mutated: %s", got)
	}
}

func TestCategoryAndPaths(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/mnt/ext1/tv/The_Show/s01e01.avi", dispatch.CategoryTV},
		{"/mnt/ext1/movies/Film.mkv", dispatch.CategoryMovies},
		{"/mnt/ext1/Movies/Film.mkv", dispatch.CategoryMovies},
		{"/mnt/ext1/clips/tvshow.mkv", dispatch.CategoryVideos},
		{"/home/pi/conversions/tv/show.avi", dispatch.CategoryTV},
	}
	for _, tt := range tests {
		if got := dispatch.CategoryOf(tt.path); got != tt.want {
			t.Fatalf("CategoryOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if got := dispatch.ShipPath("/home/conor/conversions", "", "/mnt/ext1/tv/show.avi"); got != "/home/conor/conversions/tv/show.avi" {
		t.Fatalf("unexpected ship path %q", got)
	}
	if got := dispatch.ReturnPath("/mnt/ext1/torrents", dispatch.CategoryMovies, "/home/pi/conversions/movies/film.mp4"); got != "/mnt/ext1/torrents/movies/film.mp4" {
		t.Fatalf("unexpected return path %q", got)
	}
}

func TestDispatchShipsAndFallsBackLocal(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f, testsupport.WithRemoteHosts("host1", "host2"))
	q := &recordingQueue{}
	ctx := context.Background()

	var inputs []string
	for _, name := range []string{"a.avi", "b.avi", "c.avi", "d.avi"} {
		p := filepath.Join(cfg.Paths.MediaDir, "tv", name)
		testsupport.WriteFile(t, p, 2048)
		inputs = append(inputs, p)
	}

	for _, in := range inputs {
		if _, err := d.Dispatch(ctx, q, queue.NewJob(in, strings.TrimSuffix(in, ".avi")+".mp4", 1)); err != nil {
			t.Fatalf("Dispatch %s: %v", in, err)
		}
	}

	assertShipped := func(host, name string) {
		t.Helper()
		if _, err := os.Stat(filepath.Join(f.base, host, "conversions", "tv", name)); err != nil {
			t.Fatalf("expected %s on %s: %v", name, host, err)
		}
		if _, err := os.Stat(filepath.Join(cfg.Paths.MediaDir, "tv", name)); !os.IsNotExist(err) {
			t.Fatalf("expected local %s removed, got %v", name, err)
		}
	}
	assertShipped("host1", "a.avi")
	assertShipped("host2", "b.avi")
	assertShipped("host1", "d.avi")

	if len(q.jobs) != 1 || q.jobs[0].Input() != inputs[2] {
		t.Fatalf("expected c.avi queued locally, got %v", q.jobs)
	}
	if _, err := os.Stat(inputs[2]); err != nil {
		t.Fatalf("expected local job input kept: %v", err)
	}
}

func TestShipInsufficientSpaceKeepsLocal(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f)
	f.host("host1").free = 1024
	local := filepath.Join(cfg.Paths.MediaDir, "movies", "big.mkv")
	testsupport.WriteFile(t, local, 4096)

	shipped, err := d.Ship(context.Background(), "host1", local, "/conversions/movies/big.mkv")
	if !errors.Is(err, dispatch.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if shipped {
		t.Fatal("expected nothing shipped")
	}
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("expected local file kept: %v", err)
	}
}

func TestShipHonoursFreeFloor(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f)
	cfg.Agent.MinFreeGiB = 1
	d = dispatch.New(cfg, d.Policy(), f, logging.NewNop())
	f.host("host1").free = 1 << 30
	local := filepath.Join(cfg.Paths.MediaDir, "movies", "film.mkv")
	testsupport.WriteFile(t, local, 4096)

	if _, err := d.Ship(context.Background(), "host1", local, "/conversions/movies/film.mkv"); !errors.Is(err, dispatch.ErrInsufficientSpace) {
		t.Fatalf("expected floor to reject transfer, got %v", err)
	}
}

func TestShipExistingDestinationIsNoop(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f)
	local := filepath.Join(cfg.Paths.MediaDir, "movies", "film.mkv")
	testsupport.WriteFile(t, local, 4096)
	existing := filepath.Join(f.base, "host1", "conversions", "movies", "film.mkv")
	testsupport.WriteFile(t, existing, 10)

	shipped, err := d.Ship(context.Background(), "host1", local, "/conversions/movies/film.mkv")
	if err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if shipped {
		t.Fatal("expected no-op when destination exists")
	}
	info, err := os.Stat(existing)
	if err != nil || info.Size() != 10 {
		t.Fatalf("expected destination untouched, got %v %v", info, err)
	}
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("expected local kept: %v", err)
	}
}

func TestShipChecksFreeSpaceBeforeDestination(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f)
	f.host("host1").free = 1024
	local := filepath.Join(cfg.Paths.MediaDir, "movies", "film.mkv")
	testsupport.WriteFile(t, local, 4096)
	testsupport.WriteFile(t, filepath.Join(f.base, "host1", "conversions", "movies", "film.mkv"), 10)

	shipped, err := d.Ship(context.Background(), "host1", local, "/conversions/movies/film.mkv")
	if !errors.Is(err, dispatch.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace ahead of the existence check, got %v", err)
	}
	if shipped {
		t.Fatal("expected nothing shipped")
	}
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("expected local kept: %v", err)
	}
}

func TestShipTransportErrorKeepsLocalAndDropsConnection(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f, testsupport.WithRemoteHosts("host1"))
	f.host("host1").failPut = true
	local := filepath.Join(cfg.Paths.MediaDir, "tv", "show.avi")
	testsupport.WriteFile(t, local, 4096)
	q := &recordingQueue{}

	out, err := d.Dispatch(context.Background(), q, queue.NewJob(local, "", 0))
	if err == nil {
		t.Fatal("expected transport error")
	}
	if out.Queued || out.Shipped || len(q.jobs) != 0 {
		t.Fatalf("expected job neither queued nor shipped, got %+v", out)
	}
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("expected local kept: %v", err)
	}
	if len(f.dropped) != 1 || f.dropped[0] != "host1" {
		t.Fatalf("expected connection dropped, got %v", f.dropped)
	}
}

func TestReturnToControlShipsOutput(t *testing.T) {
	f := newFleet(t)
	cfg, d := newDispatcher(t, f, testsupport.WithRemoteAgent("control"))
	input := filepath.Join(cfg.Paths.MediaDir, "movies", "film.avi")
	output := filepath.Join(cfg.Paths.MediaDir, "movies", "film.mp4")
	testsupport.WriteFile(t, output, 4096)

	job := queue.NewJob(input, output, 0)
	if err := d.ReturnToControl().Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := filepath.Join(f.base, "control", cfg.Agent.ReturnBasePath, "movies", "film.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected output on control host at %s: %v", want, err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("expected local output removed, got %v", err)
	}
}
