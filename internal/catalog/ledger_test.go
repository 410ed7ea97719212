package catalog_test

import (
	"context"
	"testing"

	"mediaagent/internal/catalog"
)

func TestRecordPendingReusesRowAndResets(t *testing.T) {
	cat, backend, _ := newTestCatalog(t)
	ctx := context.Background()

	id, err := cat.RecordPending(ctx, "/m/movies/A.mkv", "/m/movies/A.mp4", 4)
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}
	if err := cat.RecordOutcome(ctx, id, catalog.ConversionFailed, " ffmpeg exit 1 "); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	row := backend.conversions.get(id)
	if row.Status != catalog.ConversionFailed || row.ErrorMessage != "ffmpeg exit 1" {
		t.Fatalf("unexpected failed row: %#v", row)
	}

	again, err := cat.RecordPending(ctx, "/m/movies/A.mkv", "/m/movies/A.mp4", 4)
	if err != nil {
		t.Fatalf("RecordPending again: %v", err)
	}
	if again != id {
		t.Fatalf("expected row reuse, got %d want %d", again, id)
	}
	row = backend.conversions.get(id)
	if row.Status != catalog.ConversionPending || row.ErrorMessage != "" || row.Host != "primary" {
		t.Fatalf("expected reset pending row, got %#v", row)
	}

	cached, err := cat.ConversionByFilename(ctx, "/m/movies/A.mkv")
	if err != nil || cached == nil || cached.Status != catalog.ConversionPending {
		t.Fatalf("expected cache to follow the reset, got %#v %v", cached, err)
	}
}

func TestUpdateConversionRejectsUnknownStatus(t *testing.T) {
	cat, _, _ := newTestCatalog(t)
	ctx := context.Background()
	id, err := cat.RecordPending(ctx, "/m/a.avi", "/m/a.mp4", 0)
	if err != nil {
		t.Fatalf("RecordPending: %v", err)
	}
	if _, err := cat.UpdateConversion(ctx, id, "done", ""); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestPendingConversionsFiltersByHost(t *testing.T) {
	cat, backend, _ := newTestCatalog(t)
	ctx := context.Background()
	if _, err := cat.RecordPending(ctx, "/m/mine.mkv", "/m/mine.mp4", 1); err != nil {
		t.Fatalf("RecordPending: %v", err)
	}
	backend.conversions.put(catalog.Conversion{OriginalFilename: "/m/theirs.mkv", Status: catalog.ConversionPending, Host: "192.168.0.25"})

	pending, err := cat.PendingConversions(ctx)
	if err != nil {
		t.Fatalf("PendingConversions: %v", err)
	}
	if len(pending) != 1 || pending[0].OriginalFilename != "/m/mine.mkv" {
		t.Fatalf("unexpected pending rows: %#v", pending)
	}
	all, err := cat.Conversions(ctx, "", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two rows, got %d %v", len(all), err)
	}
}
