package ingest

import (
	"context"

	"mediaagent/internal/catalog"
	"mediaagent/internal/queue"
)

// CatalogPublisher points the catalog row of a converted job at its output.
// Jobs without a catalog id are ignored.
func CatalogPublisher(cat *catalog.Catalog, mediaDir string) queue.Publisher {
	return queue.PublisherFunc(func(ctx context.Context, job *queue.Job) error {
		if job.VideoID() == 0 {
			return nil
		}
		_, err := cat.UpdateVideoFile(ctx, job.VideoID(), job.Output(), cdnPath(mediaDir, job.Output()))
		return err
	})
}
