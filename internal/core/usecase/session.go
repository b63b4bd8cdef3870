package usecase

import (
	"log/slog"
	"sync"
	"time"

	"github.com/forestguardian/guardian/internal/core/domain"
)

// Notification is a transient banner surfaced to the viewer, auto-dismissed after
// its TTL elapses.
type Notification struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session owns the report collection for the lifetime of one client session. The
// backend stays the source of truth; everything here is a best-effort cache that a
// fresh fetch can rebuild. All mutation funnels through the methods below, guarded
// by one mutex, and image updates are idempotent keyed applies so interleaved poll
// completions can land in any order.
type Session struct {
	mu sync.Mutex

	reports      []domain.Report
	selected     string
	currentIndex int
	notification *Notification
	loading      bool

	notificationTTL time.Duration
	logger          *slog.Logger
}

func NewSession(notificationTTL time.Duration, logger *slog.Logger) *Session {
	if notificationTTL <= 0 {
		notificationTTL = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		notificationTTL: notificationTTL,
		logger:          logger,
	}
}

// Reports returns a snapshot of the collection, newest submission first.
func (s *Session) Reports() []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// InsertSubmission places a freshly uploaded report at the front of the collection.
// If a report with the same submission id already exists it is replaced in place
// instead, keeping the one-report-per-submission invariant.
func (s *Session) InsertSubmission(report domain.Report) {
	report.Recompute()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reports {
		if s.reports[i].SubmissionID == report.SubmissionID {
			s.reports[i] = report
			return
		}
	}
	s.reports = append([]domain.Report{report}, s.reports...)
}

// AppendImages merges newly uploaded images into an existing report, preserving
// their relative upload order. When the viewed report grows, the current image
// index resets to zero so it cannot point past the end.
func (s *Session) AppendImages(submissionID string, images []domain.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reports {
		if s.reports[i].SubmissionID != submissionID {
			continue
		}
		report := &s.reports[i]
		before := len(report.Images)
		for _, img := range images {
			if report.FindImage(img.ID) != nil {
				continue
			}
			report.Images = append(report.Images, img)
		}
		report.Recompute()
		if s.selected == submissionID && len(report.Images) != before {
			s.currentIndex = 0
		}
		return nil
	}
	return domain.ErrReportNotFound
}

// ApplyResult folds one polled result into its image, keyed by image id. Returns
// false when the submission cannot be matched; the caller logs that as a
// reconciliation warning rather than failing.
func (s *Session) ApplyResult(submissionID, imageID string, res domain.PredictionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.findReport(submissionID)
	if report == nil {
		return false
	}
	img := report.FindImage(imageID)
	if img == nil {
		return false
	}
	img.Apply(res)
	report.Recompute()
	return true
}

// ApplyStatus records a non-terminal status observation without touching result
// fields.
func (s *Session) ApplyStatus(submissionID, imageID string, status domain.ImageStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.findReport(submissionID)
	if report == nil {
		return false
	}
	img := report.FindImage(imageID)
	if img == nil {
		return false
	}
	img.Status = status
	report.Recompute()
	return true
}

// ApplyPollError marks an image as degraded: the last observed status stands and
// the error message is attached for display.
func (s *Session) ApplyPollError(submissionID, imageID, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.findReport(submissionID)
	if report == nil {
		return false
	}
	img := report.FindImage(imageID)
	if img == nil {
		return false
	}
	img.Error = message
	return true
}

// ReplaceAll reconciles the collection against an authoritative backend fetch. The
// local collection is replaced wholesale; the viewed report is re-located by
// submission id so the viewer keeps their place, unless its image count changed
// (index resets to the first image) or it moved from a non-first position to the
// front (a transient notification is raised).
func (s *Session) ReplaceAll(fresh []domain.Report) {
	fresh = domain.DedupeReports(fresh)
	for i := range fresh {
		fresh[i].Recompute()
	}
	domain.SortReportsNewestFirst(fresh)

	s.mu.Lock()
	defer s.mu.Unlock()

	oldPos := s.position(s.reports, s.selected)
	oldCount := -1
	if old := s.findReport(s.selected); old != nil {
		oldCount = len(old.Images)
	}

	s.reports = fresh

	if s.selected == "" {
		return
	}
	newPos := s.position(s.reports, s.selected)
	if newPos < 0 {
		s.selected = ""
		s.currentIndex = 0
		return
	}
	if oldCount >= 0 && len(s.reports[newPos].Images) != oldCount {
		s.currentIndex = 0
	}
	if oldPos > 0 && newPos == 0 {
		s.notification = &Notification{
			Message:   "Report moved to the top of the list",
			ExpiresAt: time.Now().Add(s.notificationTTL),
		}
	}
}

// Report returns a copy of one report without touching the selection.
func (s *Session) Report(submissionID string) (domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report := s.findReport(submissionID); report != nil {
		return *report, true
	}
	return domain.Report{}, false
}

// Select marks a report as the one being viewed.
func (s *Session) Select(submissionID string) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.findReport(submissionID)
	if report == nil {
		return domain.Report{}, domain.ErrReportNotFound
	}
	if s.selected != submissionID {
		s.currentIndex = 0
	}
	s.selected = submissionID
	return *report, nil
}

// Selected returns the viewed report and current image index.
func (s *Session) Selected() (domain.Report, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.findReport(s.selected)
	if report == nil {
		return domain.Report{}, 0, false
	}
	return *report, s.currentIndex, true
}

func (s *Session) SetCurrentIndex(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report := s.findReport(s.selected); report != nil && index >= 0 && index < len(report.Images) {
		s.currentIndex = index
	}
}

// Notification returns the active transient notification, expiring it lazily.
func (s *Session) Notification() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notification == nil {
		return Notification{}, false
	}
	if time.Now().After(s.notification.ExpiresAt) {
		s.notification = nil
		return Notification{}, false
	}
	return *s.notification, true
}

// HasActiveImages reports whether any image anywhere in the collection is still in
// a non-terminal status. The auto-refresh scheduler keys off this.
func (s *Session) HasActiveImages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reports {
		if s.reports[i].HasActiveImages() {
			return true
		}
	}
	return false
}

func (s *Session) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) findReport(submissionID string) *domain.Report {
	if submissionID == "" {
		return nil
	}
	for i := range s.reports {
		if s.reports[i].SubmissionID == submissionID {
			return &s.reports[i]
		}
	}
	return nil
}

func (s *Session) position(reports []domain.Report, submissionID string) int {
	if submissionID == "" {
		return -1
	}
	for i := range reports {
		if reports[i].SubmissionID == submissionID {
			return i
		}
	}
	return -1
}
