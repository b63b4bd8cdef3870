package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forestguardian/guardian/internal/core/domain"
)

func TestUploadBatchSendsMultipartWithBearerToken(t *testing.T) {
	var gotAuth string
	var gotFilenames []string
	var gotSubmission string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/upload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		for _, header := range r.MultipartForm.File["files"] {
			gotFilenames = append(gotFilenames, header.Filename)
		}
		gotSubmission = r.FormValue("submission_id")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"submission_id": "sub-9",
			"results": [
				{"image_id": "img-1", "filename": "one.jpg", "s3_url": "s3://b/one.jpg"},
				{"image_id": "img-2", "filename": "two.png", "s3_url": "s3://b/two.png"}
			]
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "secret-token")
	files := []domain.FileUpload{
		{Filename: "one.jpg", ContentType: "image/jpeg", Data: []byte("a")},
		{Filename: "two.png", ContentType: "image/png", Data: []byte("b")},
	}
	receipt, err := client.UploadBatch(context.Background(), files, "sub-9")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if len(gotFilenames) != 2 || gotFilenames[0] != "one.jpg" {
		t.Fatalf("unexpected multipart files: %v", gotFilenames)
	}
	if gotSubmission != "sub-9" {
		t.Fatalf("expected submission_id field, got %q", gotSubmission)
	}
	if receipt.SubmissionID != "sub-9" || len(receipt.Images) != 2 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestRequestsOmitAuthorizationWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("anonymous client must not send an Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "reports": []}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	if _, err := client.FetchReports(context.Background()); err != nil {
		t.Fatalf("fetch reports: %v", err)
	}
}

func TestFetchResultDefaultsMissingNumerics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/predict/img-1/results" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"status": "processed",
			"results": {
				"detections": [
					{"label": "pine", "confidence": 0.9},
					{"label": "pine", "confidence": 0.8},
					{"label": " spruce ", "confidence": 0.7},
					{"label": "", "confidence": 0.1}
				]
			}
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	result, err := client.FetchResult(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("fetch result: %v", err)
	}

	if result.Status != domain.StatusProcessed {
		t.Fatalf("expected processed, got %s", result.Status)
	}
	if result.Confidence != 0 || result.DetectedAreas != 0 || result.ProcessingTime != 0 {
		t.Fatalf("missing numerics must default to zero, got %+v", result)
	}
	if len(result.Species) != 2 || result.Species[0] != "pine" || result.Species[1] != "spruce" {
		t.Fatalf("expected deduped trimmed species, got %v", result.Species)
	}
}

func TestFetchResultCarriesFailureDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"status": "failed",
			"results": {"error": "model could not open image"}
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	result, err := client.FetchResult(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("fetch result: %v", err)
	}
	if result.Status != domain.StatusFailed || result.Error != "model could not open image" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestStatusErrorExposesServerDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "file type not supported"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	_, err := client.UploadBatch(context.Background(), []domain.FileUpload{{Filename: "x.jpg"}}, "")
	if err == nil {
		t.Fatal("expected an error")
	}

	detail, ok := Detail(err)
	if !ok || detail != "file type not supported" {
		t.Fatalf("expected server detail surfaced, got %q %v", detail, ok)
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStatusErrorMapsToSemanticKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, domain.ErrUnauthorized},
		{"not found", http.StatusNotFound, domain.ErrReportNotFound},
		{"unavailable", http.StatusServiceUnavailable, domain.ErrTemporary},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client := New(srv.URL, "")
			_, err := client.FetchReports(context.Background())
			if !errors.Is(err, tc.kind) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.kind, err)
			}
		})
	}
}

func TestFetchReportsRebuildsCreatedAtFromDateAndTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"reports": [{
				"submission_id": "sub-1",
				"date": "2026-05-01",
				"time": "10:30",
				"image_count": 1,
				"total_detected_areas": 3,
				"status": "completed",
				"images": [{"image_id": "img-1", "input_name": "one.jpg", "status": "processed"}]
			}]
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	reports, err := client.FetchReports(context.Background())
	if err != nil {
		t.Fatalf("fetch reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}

	report := reports[0]
	if report.CreatedAt.IsZero() {
		t.Fatal("expected created_at rebuilt from date and time")
	}
	if got := report.CreatedAt.Format("2006-01-02 15:04"); got != "2026-05-01 10:30" {
		t.Fatalf("unexpected created_at: %s", got)
	}
	if report.AverageConfidence != 0 {
		t.Fatalf("missing average_confidence must default to zero, got %f", report.AverageConfidence)
	}
	if len(report.Images) != 1 || report.Images[0].Filename != "one.jpg" {
		t.Fatalf("unexpected images: %+v", report.Images)
	}
}

func TestTriggerPredictionPostsToPredictEndpoint(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	if err := client.TriggerPrediction(context.Background(), "img-7"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/v1/predict/img-7" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestDownloadImageReturnsRawBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/download/img-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer srv.Close()

	client := New(srv.URL, "")
	data, err := client.DownloadImage(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(data) != 3 || data[0] != 0xff {
		t.Fatalf("unexpected payload: %v", data)
	}
}
