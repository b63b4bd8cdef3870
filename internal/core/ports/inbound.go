package ports

import (
	"context"

	"github.com/forestguardian/guardian/internal/core/domain"
)

// BatchUploader is the inbound contract for submitting a batch of local files.
type BatchUploader interface {
	Upload(ctx context.Context, files []domain.FileUpload, submissionID string) (*domain.UploadOutcome, error)
}

// SubmissionWatcher polls every image of a submission to a terminal state.
type SubmissionWatcher interface {
	Watch(ctx context.Context, submissionID string, imageIDs []string)
}

// ReportRefresher reconciles the local collection against a fresh backend fetch.
type ReportRefresher interface {
	Refresh(ctx context.Context, silent bool) error
}
