package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/forestguardian/guardian/internal/core/domain"
	"github.com/forestguardian/guardian/internal/infrastructure/resilience"
)

// Client talks to the Forest Guardian backend under /api/v1. When a session token
// is configured every request carries it as a bearer header; without one the
// header is simply omitted and anonymous flows degrade server-side.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, token string) *Client {
	return NewWithOptions(baseURL, token, Options{})
}

type Options struct {
	Timeout time.Duration
	// Executor wraps idempotent reads (report fetches, downloads) with retry and
	// circuit breaking. Poll requests are deliberately excluded: the poller owns
	// its attempt budget and must issue exactly one request per attempt.
	Executor *resilience.Executor
}

func NewWithOptions(baseURL, token string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyBackendError)
}

type uploadResponse struct {
	Success      bool                   `json:"success"`
	SubmissionID string                 `json:"submission_id"`
	Results      []domain.UploadedImage `json:"results"`
	Detail       string                 `json:"detail,omitempty"`
}

// UploadBatch posts all files as one multipart request. The batch is atomic: any
// failure means no images were uploaded.
func (c *Client) UploadBatch(ctx context.Context, files []domain.FileUpload, submissionID string) (*domain.UploadReceipt, error) {
	var response uploadResponse
	if err := c.postMultipart(ctx, "/api/v1/upload", files, submissionID, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, fmt.Errorf("upload rejected: %s", orGeneric(response.Detail))
	}
	return &domain.UploadReceipt{
		SubmissionID: response.SubmissionID,
		Images:       response.Results,
	}, nil
}

type reportDTO struct {
	SubmissionID       string         `json:"submission_id"`
	Date               string         `json:"date"`
	Time               string         `json:"time"`
	CreatedAt          *time.Time     `json:"created_at,omitempty"`
	ImageCount         int            `json:"image_count"`
	TotalDetectedAreas int            `json:"total_detected_areas"`
	AverageConfidence  *float64       `json:"average_confidence"`
	Status             string         `json:"status"`
	Images             []domain.Image `json:"images"`
}

type reportsResponse struct {
	Success bool        `json:"success"`
	Reports []reportDTO `json:"reports"`
}

func (c *Client) FetchReports(ctx context.Context) ([]domain.Report, error) {
	var response reportsResponse
	err := c.execute(ctx, "backend.reports", func(callCtx context.Context) error {
		return c.getJSON(callCtx, "/api/v1/reports", &response)
	})
	if err != nil {
		return nil, err
	}

	reports := make([]domain.Report, 0, len(response.Reports))
	for _, dto := range response.Reports {
		reports = append(reports, dto.toDomain())
	}
	return reports, nil
}

func (dto reportDTO) toDomain() domain.Report {
	report := domain.Report{
		SubmissionID:       dto.SubmissionID,
		Date:               dto.Date,
		Time:               dto.Time,
		ImageCount:         dto.ImageCount,
		TotalDetectedAreas: dto.TotalDetectedAreas,
		Status:             domain.ReportStatus(dto.Status),
		Images:             dto.Images,
	}
	if dto.AverageConfidence != nil {
		report.AverageConfidence = *dto.AverageConfidence
	}
	switch {
	case dto.CreatedAt != nil:
		report.CreatedAt = *dto.CreatedAt
	default:
		// The backend formats date and time separately; rebuild a sortable
		// timestamp from them.
		if ts, err := time.Parse("2006-01-02 15:04", dto.Date+" "+dto.Time); err == nil {
			report.CreatedAt = ts
		}
	}
	return report
}

type resultsResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Results struct {
		AverageConfidence *float64           `json:"average_confidence"`
		NumDetections     *int               `json:"num_detections"`
		ProcessingTime    *float64           `json:"processing_time"`
		Detections        []domain.Detection `json:"detections"`
		Error             string             `json:"error,omitempty"`
	} `json:"results"`
	ResultsURL string `json:"results_url,omitempty"`
}

func (c *Client) TriggerPrediction(ctx context.Context, imageID string) error {
	path := fmt.Sprintf("/api/v1/predict/%s", imageID)
	return c.postJSON(ctx, path, struct{}{}, &struct{}{})
}

// FetchResult reads one status check and normalizes it. Numeric fields the backend
// omits default to zero here, at the deserialization boundary, so nothing
// downstream ever handles absent values.
func (c *Client) FetchResult(ctx context.Context, imageID string) (*domain.PredictionResult, error) {
	path := fmt.Sprintf("/api/v1/predict/%s/results", imageID)
	var response resultsResponse
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}

	result := &domain.PredictionResult{
		Status:    domain.ImageStatus(response.Status),
		OutputURL: response.ResultsURL,
		Error:     response.Results.Error,
	}
	if response.Results.AverageConfidence != nil {
		result.Confidence = *response.Results.AverageConfidence
	}
	if response.Results.NumDetections != nil {
		result.DetectedAreas = *response.Results.NumDetections
	}
	if response.Results.ProcessingTime != nil {
		result.ProcessingTime = *response.Results.ProcessingTime
	}
	result.Species = speciesFromDetections(response.Results.Detections)
	return result, nil
}

func (c *Client) DownloadImage(ctx context.Context, imageID string) ([]byte, error) {
	path := fmt.Sprintf("/api/v1/download/%s", imageID)
	var data []byte
	err := c.execute(ctx, "backend.download", func(callCtx context.Context) error {
		var callErr error
		data, callErr = c.getBytes(callCtx, path)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func speciesFromDetections(detections []domain.Detection) []string {
	if len(detections) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(detections))
	var species []string
	for _, d := range detections {
		label := strings.TrimSpace(d.Label)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		species = append(species, label)
	}
	return species
}

func orGeneric(detail string) string {
	if strings.TrimSpace(detail) == "" {
		return "network error, please try again"
	}
	return detail
}
