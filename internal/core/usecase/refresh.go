package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forestguardian/guardian/internal/core/domain"
	"github.com/forestguardian/guardian/internal/core/ports"
)

const defaultRefreshInterval = 30 * time.Second

// RefreshMetrics is implemented by the observability layer; nil disables it.
type RefreshMetrics interface {
	RefreshDone(mode string, duration time.Duration, err error)
}

// RefreshReportsUseCase is the authoritative reconciliation path: it replaces the
// local collection wholesale with a fresh backend fetch. Silent refreshes (the
// scheduler, or the fetch after appending photos) never raise the blocking loading
// indicator; explicit user-initiated ones do.
type RefreshReportsUseCase struct {
	backend ports.ReportFetcher
	session *Session
	events  ports.StatusPublisher

	interval time.Duration
	metrics  RefreshMetrics
	logger   *slog.Logger
}

func NewRefreshReportsUseCase(
	backend ports.ReportFetcher,
	session *Session,
	events ports.StatusPublisher,
	interval time.Duration,
	metrics RefreshMetrics,
	logger *slog.Logger,
) *RefreshReportsUseCase {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshReportsUseCase{
		backend:  backend,
		session:  session,
		events:   events,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

func (uc *RefreshReportsUseCase) Refresh(ctx context.Context, silent bool) error {
	mode := "visible"
	if silent {
		mode = "silent"
	}
	started := time.Now()

	if !silent {
		uc.session.SetLoading(true)
		defer uc.session.SetLoading(false)
	}

	fresh, err := uc.backend.FetchReports(ctx)
	if uc.metrics != nil {
		uc.metrics.RefreshDone(mode, time.Since(started), err)
	}
	if err != nil {
		return fmt.Errorf("fetch reports: %w", err)
	}

	uc.session.ReplaceAll(fresh)

	uc.logger.Debug("reports_refreshed", "mode", mode, "count", len(fresh))
	if uc.events != nil {
		event := domain.StatusEvent{
			Kind: domain.EventReportRefreshed,
			At:   time.Now().UTC(),
		}
		if err := uc.events.PublishStatus(ctx, event); err != nil {
			uc.logger.Warn("status_publish_failed", "error", err)
		}
	}
	return nil
}

// Run drives the periodic silent refresh until ctx is cancelled. A tick only
// fetches while at least one image is non-terminal; once everything settles the
// scheduler idles until a new upload makes the session active again.
func (uc *RefreshReportsUseCase) Run(ctx context.Context) {
	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !uc.session.HasActiveImages() {
				continue
			}
			if err := uc.Refresh(ctx, true); err != nil {
				uc.logger.Warn("auto_refresh_failed", "error", err)
			}
		}
	}
}
