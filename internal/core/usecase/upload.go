package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forestguardian/guardian/internal/core/domain"
	"github.com/forestguardian/guardian/internal/core/ports"
)

const (
	defaultMaxUploadBytes = 50 << 20

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/tiff": {},
}

// UploadBatchUseCase validates and submits a batch of local files, records the
// resulting tracking state in the session, and hands the new images to the poller.
type UploadBatchUseCase struct {
	backend  ports.Uploader
	session  *Session
	watcher  ports.SubmissionWatcher
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadBatchUseCase(
	backend ports.Uploader,
	session *Session,
	watcher ports.SubmissionWatcher,
	maxBytes int64,
	logger *slog.Logger,
) *UploadBatchUseCase {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadBatchUseCase{
		backend:  backend,
		session:  session,
		watcher:  watcher,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload submits the valid subset of files as one atomic multipart request. Files
// failing validation are excluded and reported; if none survive, the backend is
// never contacted. A non-empty submissionID appends to that submission instead of
// creating a new one.
func (uc *UploadBatchUseCase) Upload(
	ctx context.Context,
	files []domain.FileUpload,
	submissionID string,
) (*domain.UploadOutcome, error) {
	valid, rejected := uc.validate(files)
	if len(valid) == 0 {
		return nil, &domain.ValidationError{Rejections: rejected}
	}

	receipt, err := uc.backend.UploadBatch(ctx, valid, submissionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpload, "upload batch", err)
	}
	if len(receipt.Images) != len(valid) {
		return nil, domain.WrapError(domain.ErrUpload, "upload batch",
			fmt.Errorf("backend acknowledged %d of %d files", len(receipt.Images), len(valid)))
	}

	now := time.Now().UTC()
	images := make([]domain.Image, 0, len(receipt.Images))
	for _, up := range receipt.Images {
		images = append(images, domain.Image{
			ID:         up.ImageID,
			Filename:   up.Filename,
			SourceURL:  up.S3URL,
			Status:     domain.StatusUploaded,
			UploadedAt: now,
		})
	}

	report := uc.reconcile(submissionID, receipt, images, now)

	if uc.watcher != nil {
		ids := make([]string, 0, len(images))
		for _, img := range images {
			ids = append(ids, img.ID)
		}
		uc.watcher.Watch(ctx, receipt.SubmissionID, ids)
	}

	uc.logger.Info("batch_uploaded",
		"submission_id", receipt.SubmissionID,
		"uploaded", len(images),
		"rejected", len(rejected),
	)

	return &domain.UploadOutcome{
		Receipt:  receipt,
		Rejected: rejected,
		Report:   &report,
	}, nil
}

func (uc *UploadBatchUseCase) reconcile(
	submissionID string,
	receipt *domain.UploadReceipt,
	images []domain.Image,
	now time.Time,
) domain.Report {
	if submissionID != "" {
		if err := uc.session.AppendImages(receipt.SubmissionID, images); err == nil {
			report, _ := uc.session.Report(receipt.SubmissionID)
			return report
		}
		// Unknown submission id from an append: fall through and track it as a
		// new report so the images are not lost.
		uc.logger.Warn("reconciliation_warning",
			"submission_id", receipt.SubmissionID,
			"reason", "append target not found, creating report",
		)
	}

	report := domain.Report{
		SubmissionID: receipt.SubmissionID,
		Date:         now.Format(dateLayout),
		Time:         now.Format(timeLayout),
		CreatedAt:    now,
		Images:       images,
	}
	report.Recompute()
	uc.session.InsertSubmission(report)
	return report
}

func (uc *UploadBatchUseCase) validate(files []domain.FileUpload) ([]domain.FileUpload, []domain.FileRejection) {
	valid := make([]domain.FileUpload, 0, len(files))
	var rejected []domain.FileRejection
	for _, f := range files {
		if _, ok := allowedContentTypes[f.ContentType]; !ok {
			rejected = append(rejected, domain.FileRejection{
				Filename: f.Filename,
				Reason:   fmt.Sprintf("file type %s not supported, use JPEG, PNG, or TIFF", f.ContentType),
			})
			continue
		}
		if f.Size > uc.maxBytes {
			rejected = append(rejected, domain.FileRejection{
				Filename: f.Filename,
				Reason:   fmt.Sprintf("file too large, maximum size is %d MB", uc.maxBytes>>20),
			})
			continue
		}
		valid = append(valid, f)
	}
	return valid, rejected
}
