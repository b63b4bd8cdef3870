package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/forestguardian/guardian/internal/core/domain"
	"github.com/forestguardian/guardian/internal/core/ports"
)

// Exporter packages a report's images and statistics for download. Blobs are
// served cache-first so an export never refetches what the viewer already pulled.
type Exporter struct {
	downloader ports.ImageDownloader
	blobs      ports.BlobCache
	logger     *slog.Logger
}

func NewExporter(downloader ports.ImageDownloader, blobs ports.BlobCache, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		downloader: downloader,
		blobs:      blobs,
		logger:     logger,
	}
}

// ZIP downloads every image of the report and packs the blobs into one archive.
// Images that cannot be fetched are skipped with a warning; an archive with zero
// entries is an error.
func (e *Exporter) ZIP(ctx context.Context, report domain.Report) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	packed := 0
	for _, img := range report.Images {
		data, err := e.Fetch(ctx, img.ID)
		if err != nil {
			e.logger.Warn("export_image_skipped", "image_id", img.ID, "error", err)
			continue
		}
		name := img.Filename
		if name == "" {
			name = img.ID + ".jpg"
		}
		entry, err := archive.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", name, err)
		}
		if _, err := entry.Write(data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", name, err)
		}
		packed++
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	if packed == 0 {
		return nil, fmt.Errorf("no images could be exported for submission %s", report.SubmissionID)
	}
	return buf.Bytes(), nil
}

// Fetch returns one image blob, cache-first.
func (e *Exporter) Fetch(ctx context.Context, imageID string) ([]byte, error) {
	if e.blobs != nil {
		if data, ok := e.blobs.Get(imageID); ok {
			return data, nil
		}
	}
	data, err := e.downloader.DownloadImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if e.blobs != nil {
		e.blobs.Set(imageID, data)
	}
	return data, nil
}
