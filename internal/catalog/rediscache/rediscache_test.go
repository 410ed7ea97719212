package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"mediaagent/internal/catalog"
	"mediaagent/internal/catalog/rediscache"
)

func TestCacheRoundTripAndMiss(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := rediscache.Dial(context.Background(), rediscache.Options{Addr: server.Addr()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	cache := rediscache.New[catalog.Conversion](client, "mediaagent", "conversion", 0)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "id:1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	conv := &catalog.Conversion{ID: 1, OriginalFilename: "/m/a.mkv", Status: catalog.ConversionPending, Host: "primary"}
	if err := cache.Set(ctx, "id:1", conv); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !server.Exists("mediaagent:conversion:id:1") {
		t.Fatalf("expected namespaced key, have %v", server.Keys())
	}
	if ttl := server.TTL("mediaagent:conversion:id:1"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}

	got, ok, err := cache.Get(ctx, "id:1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.OriginalFilename != "/m/a.mkv" || got.Status != catalog.ConversionPending {
		t.Fatalf("unexpected value: %#v", got)
	}

	if err := cache.Delete(ctx, "id:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if server.Exists("mediaagent:conversion:id:1") {
		t.Fatal("expected key to be deleted")
	}
}

func TestCacheHonoursTTL(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := rediscache.Dial(context.Background(), rediscache.Options{Addr: server.Addr()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	cache := rediscache.New[catalog.Video](client, "", "video", time.Minute)
	ctx := context.Background()
	if err := cache.Set(ctx, "title:A", &catalog.Video{ID: 3, Title: "A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	server.FastForward(2 * time.Minute)
	if _, ok, err := cache.Get(ctx, "title:A"); err != nil || ok {
		t.Fatalf("expected expired miss, got ok=%v err=%v", ok, err)
	}
}

func TestCacheErrorsSurface(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := rediscache.Dial(context.Background(), rediscache.Options{Addr: server.Addr()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	cache := rediscache.New[catalog.Image](client, "p", "image", 0)

	server.SetError("LOADING")
	if _, _, err := cache.Get(context.Background(), "file_name:a.jpg"); err == nil {
		t.Fatal("expected redis error to surface")
	}
}

func TestDialFailsWithoutServer(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()
	if _, err := rediscache.Dial(context.Background(), rediscache.Options{Addr: addr}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestCatalogOverRedis(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := rediscache.Dial(context.Background(), rediscache.Options{Addr: server.Addr()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	caches := rediscache.Caches(client, "mediaagent", 0)
	source := &mapSource{rows: map[string]*catalog.Image{}}
	table := catalog.NewTable(catalog.Spec[catalog.Image]{
		Kind:  "image",
		Keys:  func(i *catalog.Image) []catalog.Key { return []catalog.Key{{Field: catalog.FieldFileName, Value: i.FileName}} },
		ID:    func(i *catalog.Image) int64 { return i.ID },
		SetID: func(i *catalog.Image, id int64) { i.ID = id },
	}, source, caches.Images)

	ctx := context.Background()
	id, err := table.Add(ctx, &catalog.Image{FileName: "poster.jpg", CDNPath: "images/poster.jpg"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !server.Exists("mediaagent:image:file_name:poster.jpg") || !server.Exists("mediaagent:image:id:1") {
		t.Fatalf("expected both keys in redis, have %v", server.Keys())
	}
	again, err := table.Add(ctx, &catalog.Image{FileName: "poster.jpg"})
	if err != nil || again != id {
		t.Fatalf("expected idempotent add served by redis, got %d %v", again, err)
	}
	if source.lookups != 1 {
		t.Fatalf("expected only the first add to reach the store, lookups=%d", source.lookups)
	}
}

type mapSource struct {
	rows    map[string]*catalog.Image
	lookups int
}

func (m *mapSource) Lookup(_ context.Context, key catalog.Key) (*catalog.Image, error) {
	m.lookups++
	if row, ok := m.rows[key.Value]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *mapSource) Insert(_ context.Context, value *catalog.Image) (int64, error) {
	id := int64(len(m.rows) + 1)
	cp := *value
	cp.ID = id
	m.rows[value.FileName] = &cp
	return id, nil
}
