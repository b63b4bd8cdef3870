package domain

import (
	"sort"
	"time"
)

type ReportStatus string

const (
	ReportProcessing ReportStatus = "processing"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

// Report is the client-side aggregate view of one submission: the images uploaded
// together plus derived statistics over them.
type Report struct {
	SubmissionID       string       `json:"submission_id"`
	Date               string       `json:"date"`
	Time               string       `json:"time"`
	CreatedAt          time.Time    `json:"created_at"`
	ImageCount         int          `json:"image_count"`
	TotalDetectedAreas int          `json:"total_detected_areas"`
	AverageConfidence  float64      `json:"average_confidence"`
	Status             ReportStatus `json:"status"`
	Images             []Image      `json:"images"`
}

// Recompute refreshes the derived aggregates from the constituent images.
func (r *Report) Recompute() {
	r.ImageCount = len(r.Images)
	r.TotalDetectedAreas = 0

	confidenceSum := 0.0
	processed := 0
	failed := 0
	active := 0
	for i := range r.Images {
		img := &r.Images[i]
		r.TotalDetectedAreas += img.DetectedAreas
		switch img.Status {
		case StatusProcessed:
			confidenceSum += img.Confidence
			processed++
		case StatusFailed:
			failed++
		default:
			active++
		}
	}

	r.AverageConfidence = 0
	if processed > 0 {
		r.AverageConfidence = confidenceSum / float64(processed)
	}

	switch {
	case active > 0:
		r.Status = ReportProcessing
	case processed == 0 && failed > 0:
		r.Status = ReportFailed
	default:
		r.Status = ReportCompleted
	}
}

// HasActiveImages reports whether any image still awaits a terminal status.
func (r *Report) HasActiveImages() bool {
	for i := range r.Images {
		if !r.Images[i].Status.Terminal() {
			return true
		}
	}
	return false
}

// FindImage returns a pointer into the report's image slice, or nil.
func (r *Report) FindImage(imageID string) *Image {
	for i := range r.Images {
		if r.Images[i].ID == imageID {
			return &r.Images[i]
		}
	}
	return nil
}

// SortReportsNewestFirst orders reports by creation time, newest first. The sort is
// stable so repeated application of the same input yields the same order.
func SortReportsNewestFirst(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
}

// DedupeReports keeps the first report seen per submission identifier, preserving
// order otherwise.
func DedupeReports(reports []Report) []Report {
	seen := make(map[string]struct{}, len(reports))
	out := reports[:0]
	for _, r := range reports {
		if _, ok := seen[r.SubmissionID]; ok {
			continue
		}
		seen[r.SubmissionID] = struct{}{}
		out = append(out, r)
	}
	return out
}
