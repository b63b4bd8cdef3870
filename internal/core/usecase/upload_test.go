package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/forestguardian/guardian/internal/core/domain"
)

type fakeUploader struct {
	receipt *domain.UploadReceipt
	err     error

	calls         int
	gotFiles      []domain.FileUpload
	gotSubmission string
}

func (f *fakeUploader) UploadBatch(_ context.Context, files []domain.FileUpload, submissionID string) (*domain.UploadReceipt, error) {
	f.calls++
	f.gotFiles = files
	f.gotSubmission = submissionID
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}

	receipt := &domain.UploadReceipt{SubmissionID: "sub-new"}
	if submissionID != "" {
		receipt.SubmissionID = submissionID
	}
	for i, file := range files {
		receipt.Images = append(receipt.Images, domain.UploadedImage{
			ImageID:  fmt.Sprintf("img-%d", i+1),
			Filename: file.Filename,
			S3URL:    "s3://bucket/" + file.Filename,
		})
	}
	return receipt, nil
}

type fakeWatcher struct {
	calls        int
	submissionID string
	imageIDs     []string
}

func (f *fakeWatcher) Watch(_ context.Context, submissionID string, imageIDs []string) {
	f.calls++
	f.submissionID = submissionID
	f.imageIDs = imageIDs
}

func jpegFile(name string, size int64) domain.FileUpload {
	return domain.FileUpload{
		Filename:    name,
		ContentType: "image/jpeg",
		Size:        size,
		Data:        []byte("jpeg-bytes"),
	}
}

func TestUploadCreatesReportAndStartsWatching(t *testing.T) {
	uploader := &fakeUploader{}
	watcher := &fakeWatcher{}
	session := NewSession(time.Second, testLogger())
	uc := NewUploadBatchUseCase(uploader, session, watcher, 0, testLogger())

	files := []domain.FileUpload{
		jpegFile("one.jpg", 100),
		jpegFile("two.jpg", 200),
		jpegFile("three.jpg", 300),
	}
	outcome, err := uc.Upload(context.Background(), files, "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if len(outcome.Rejected) != 0 {
		t.Fatalf("expected no rejections, got %v", outcome.Rejected)
	}
	if len(outcome.Receipt.Images) != 3 {
		t.Fatalf("expected 3 acknowledged images, got %d", len(outcome.Receipt.Images))
	}

	reports := session.Reports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	report := reports[0]
	if report.SubmissionID != "sub-new" || report.ImageCount != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, img := range report.Images {
		if img.Status != domain.StatusUploaded {
			t.Fatalf("expected uploaded status, got %s", img.Status)
		}
	}
	if report.Status != domain.ReportProcessing {
		t.Fatalf("expected processing report, got %s", report.Status)
	}

	if watcher.calls != 1 || watcher.submissionID != "sub-new" || len(watcher.imageIDs) != 3 {
		t.Fatalf("unexpected watch call: %+v", watcher)
	}
}

func TestUploadRejectsMasqueradedExecutable(t *testing.T) {
	uploader := &fakeUploader{}
	session := NewSession(time.Second, testLogger())
	uc := NewUploadBatchUseCase(uploader, session, &fakeWatcher{}, 0, testLogger())

	// Renamed executable: the extension lies, the content type does not.
	files := []domain.FileUpload{{
		Filename:    "totally-a-photo.jpg",
		ContentType: "application/x-msdownload",
		Size:        1024,
	}}
	_, err := uc.Upload(context.Background(), files, "")

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if len(validationErr.Rejections) != 1 || validationErr.Rejections[0].Filename != "totally-a-photo.jpg" {
		t.Fatalf("expected the offending file named, got %+v", validationErr.Rejections)
	}
	if uploader.calls != 0 {
		t.Fatal("backend must not be contacted for an all-invalid batch")
	}
}

func TestUploadExcludesOversizeFileButUploadsRest(t *testing.T) {
	uploader := &fakeUploader{}
	session := NewSession(time.Second, testLogger())
	uc := NewUploadBatchUseCase(uploader, session, &fakeWatcher{}, 1<<20, testLogger())

	files := []domain.FileUpload{
		jpegFile("small.jpg", 512),
		jpegFile("huge.jpg", 2<<20),
	}
	outcome, err := uc.Upload(context.Background(), files, "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if len(uploader.gotFiles) != 1 || uploader.gotFiles[0].Filename != "small.jpg" {
		t.Fatalf("expected only the small file uploaded, got %v", uploader.gotFiles)
	}
	if len(outcome.Rejected) != 1 || outcome.Rejected[0].Filename != "huge.jpg" {
		t.Fatalf("expected the oversize file rejected, got %v", outcome.Rejected)
	}
}

func TestUploadBackendFailureLeavesSessionUntouched(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("connection refused")}
	watcher := &fakeWatcher{}
	session := NewSession(time.Second, testLogger())
	uc := NewUploadBatchUseCase(uploader, session, watcher, 0, testLogger())

	_, err := uc.Upload(context.Background(), []domain.FileUpload{jpegFile("one.jpg", 100)}, "")

	if !domain.IsKind(err, domain.ErrUpload) {
		t.Fatalf("expected upload kind, got %v", err)
	}
	if len(session.Reports()) != 0 {
		t.Fatal("a failed batch must not leave partial state behind")
	}
	if watcher.calls != 0 {
		t.Fatal("nothing to watch after a failed batch")
	}
}

func TestUploadPartialAcknowledgementIsAnError(t *testing.T) {
	uploader := &fakeUploader{receipt: &domain.UploadReceipt{
		SubmissionID: "sub-new",
		Images:       []domain.UploadedImage{{ImageID: "img-1", Filename: "one.jpg"}},
	}}
	session := NewSession(time.Second, testLogger())
	uc := NewUploadBatchUseCase(uploader, session, &fakeWatcher{}, 0, testLogger())

	files := []domain.FileUpload{jpegFile("one.jpg", 100), jpegFile("two.jpg", 100)}
	_, err := uc.Upload(context.Background(), files, "")

	if !domain.IsKind(err, domain.ErrUpload) {
		t.Fatalf("expected upload kind for partial acknowledgement, got %v", err)
	}
	if len(session.Reports()) != 0 {
		t.Fatal("partial acknowledgement must not be recorded")
	}
}

func TestUploadAppendsToExistingSubmission(t *testing.T) {
	uploader := &fakeUploader{}
	watcher := &fakeWatcher{}
	session := NewSession(time.Second, testLogger())
	session.InsertSubmission(testReport("sub-1", time.Now(), "existing"))
	uc := NewUploadBatchUseCase(uploader, session, watcher, 0, testLogger())

	outcome, err := uc.Upload(context.Background(), []domain.FileUpload{jpegFile("extra.jpg", 100)}, "sub-1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if uploader.gotSubmission != "sub-1" {
		t.Fatalf("expected append to carry the submission id, got %q", uploader.gotSubmission)
	}
	if len(session.Reports()) != 1 {
		t.Fatalf("append must not create a second report, got %d", len(session.Reports()))
	}
	if outcome.Report.ImageCount != 2 {
		t.Fatalf("expected 2 images after append, got %d", outcome.Report.ImageCount)
	}
	if watcher.calls != 1 || len(watcher.imageIDs) != 1 {
		t.Fatalf("expected only the new image watched, got %+v", watcher)
	}
}

func TestUploadAppendToUnknownSubmissionCreatesReport(t *testing.T) {
	uploader := &fakeUploader{}
	session := NewSession(time.Second, testLogger())
	uc := NewUploadBatchUseCase(uploader, session, &fakeWatcher{}, 0, testLogger())

	outcome, err := uc.Upload(context.Background(), []domain.FileUpload{jpegFile("one.jpg", 100)}, "ghost")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(session.Reports()) != 1 {
		t.Fatalf("expected the images tracked under a fresh report, got %d reports", len(session.Reports()))
	}
	if outcome.Report.SubmissionID != "ghost" {
		t.Fatalf("expected the backend submission id kept, got %s", outcome.Report.SubmissionID)
	}
}
