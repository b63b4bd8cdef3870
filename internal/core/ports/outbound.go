package ports

import (
	"context"

	"github.com/forestguardian/guardian/internal/core/domain"
)

// Uploader submits one atomic multipart batch. An empty submissionID starts a new
// submission; a non-empty one appends to an existing group.
type Uploader interface {
	UploadBatch(ctx context.Context, files []domain.FileUpload, submissionID string) (*domain.UploadReceipt, error)
}

// ReportFetcher retrieves the authoritative report collection from the backend.
type ReportFetcher interface {
	FetchReports(ctx context.Context) ([]domain.Report, error)
}

// PredictionReader drives and observes per-image processing.
type PredictionReader interface {
	TriggerPrediction(ctx context.Context, imageID string) error
	FetchResult(ctx context.Context, imageID string) (*domain.PredictionResult, error)
}

// ImageDownloader fetches the binary blob for one image.
type ImageDownloader interface {
	DownloadImage(ctx context.Context, imageID string) ([]byte, error)
}

// StatusPublisher broadcasts session state transitions to external observers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event domain.StatusEvent) error
	SubscribeStatus(ctx context.Context, handler func(context.Context, domain.StatusEvent)) error
}

// BlobCache holds downloaded image bytes for reuse across export paths.
type BlobCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
}
