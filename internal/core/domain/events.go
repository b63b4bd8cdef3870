package domain

import "time"

type EventKind string

const (
	EventImageStatus     EventKind = "image_status"
	EventReportRefreshed EventKind = "report_refreshed"
)

// StatusEvent describes one observable state transition in the session: an image
// changing status, or the report collection being reconciled against the backend.
type StatusEvent struct {
	Kind         EventKind   `json:"kind"`
	SubmissionID string      `json:"submission_id,omitempty"`
	ImageID      string      `json:"image_id,omitempty"`
	Status       ImageStatus `json:"status,omitempty"`
	Detail       string      `json:"detail,omitempty"`
	At           time.Time   `json:"at"`
}
