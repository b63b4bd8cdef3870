package domain

import "time"

type ImageStatus string

const (
	StatusUploaded   ImageStatus = "uploaded"
	StatusProcessing ImageStatus = "processing"
	StatusProcessed  ImageStatus = "processed"
	StatusFailed     ImageStatus = "failed"
)

// Terminal reports whether no further status transition can occur.
func (s ImageStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

type Image struct {
	ID             string      `json:"image_id"`
	Filename       string      `json:"input_name"`
	SourceURL      string      `json:"inputImage,omitempty"`
	OutputURL      string      `json:"outputImage,omitempty"`
	Status         ImageStatus `json:"status"`
	Confidence     float64     `json:"confidence"`
	DetectedAreas  int         `json:"detectedAreas"`
	ProcessingTime float64     `json:"processingTime"`
	Species        []string    `json:"species,omitempty"`
	Error          string      `json:"error,omitempty"`
	UploadedAt     time.Time   `json:"created_at"`
}

type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the normalized outcome of one status check. Missing numeric
// fields are defaulted to zero at the deserialization boundary, so consumers never
// see absent values.
type PredictionResult struct {
	Status         ImageStatus
	Confidence     float64
	DetectedAreas  int
	ProcessingTime float64
	Species        []string
	OutputURL      string
	Error          string
}

// Apply folds a terminal result into the image. Applying the same result twice
// yields the same image state.
func (img *Image) Apply(res PredictionResult) {
	img.Status = res.Status
	img.Error = res.Error
	if res.Status != StatusProcessed {
		return
	}
	img.Confidence = res.Confidence
	img.DetectedAreas = res.DetectedAreas
	img.ProcessingTime = res.ProcessingTime
	img.OutputURL = res.OutputURL
	if res.Species != nil {
		img.Species = res.Species
	}
}

// FileUpload is a local file selected for submission, before validation.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// UploadedImage is the per-file acknowledgement from the backend.
type UploadedImage struct {
	ImageID  string `json:"image_id"`
	Filename string `json:"filename"`
	S3URL    string `json:"s3_url"`
	Date     string `json:"date"`
}

// UploadReceipt is the backend acknowledgement for one atomic batch upload.
type UploadReceipt struct {
	SubmissionID string          `json:"submission_id"`
	Images       []UploadedImage `json:"results"`
}

// UploadOutcome pairs the backend receipt with the local validation verdicts.
// Rejected files never reach the network; they are reported, not dropped.
type UploadOutcome struct {
	Receipt  *UploadReceipt  `json:"receipt"`
	Rejected []FileRejection `json:"rejected,omitempty"`
	Report   *Report         `json:"report"`
}
