package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/forestguardian/guardian/internal/core/domain"
	"github.com/forestguardian/guardian/internal/core/ports"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
)

// PollMetrics is implemented by the observability layer; a nil value disables
// instrumentation.
type PollMetrics interface {
	PollAttempt()
	PollOutcome(outcome string, duration time.Duration)
}

// PollResultsUseCase drives uploaded images to a terminal status. Images are
// polled concurrently, one goroutine each; within an image the loop is strictly
// sequential, so no image ever has two outstanding requests. A shared limiter
// bounds the aggregate request rate across images.
type PollResultsUseCase struct {
	backend ports.PredictionReader
	session *Session
	events  ports.StatusPublisher

	interval    time.Duration
	maxAttempts int
	limiter     *rate.Limiter
	metrics     PollMetrics
	logger      *slog.Logger

	wg sync.WaitGroup
}

func NewPollResultsUseCase(
	backend ports.PredictionReader,
	session *Session,
	events ports.StatusPublisher,
	interval time.Duration,
	maxAttempts int,
	requestsPerSecond float64,
	metrics PollMetrics,
	logger *slog.Logger,
) *PollResultsUseCase {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultPollAttempts
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	// A fractional rate truncates to burst 0, which would make every Wait fail.
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &PollResultsUseCase{
		backend:     backend,
		session:     session,
		events:      events,
		interval:    interval,
		maxAttempts: maxAttempts,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		metrics:     metrics,
		logger:      logger,
	}
}

// Watch starts one polling goroutine per image and returns immediately. The loops
// are detached from ctx's cancellation: an HTTP upload handler returns long before
// its images settle, and net/http cancels the request context at that point. Only
// ctx's values (request id) carry over; the loops run to their attempt budget.
func (uc *PollResultsUseCase) Watch(ctx context.Context, submissionID string, imageIDs []string) {
	loopCtx := context.WithoutCancel(ctx)
	for _, imageID := range imageIDs {
		uc.wg.Add(1)
		go func(id string) {
			defer uc.wg.Done()
			if err := uc.pollImage(loopCtx, submissionID, id); err != nil {
				uc.logger.Error("poll_failed",
					"submission_id", submissionID,
					"image_id", id,
					"error", err,
				)
			}
		}(imageID)
	}
}

// Wait blocks until every polling loop started by Watch has finished.
func (uc *PollResultsUseCase) Wait() {
	uc.wg.Wait()
}

// PollImage runs the bounded poll loop for a single image. A request error aborts
// this image's loop immediately; sibling images are unaffected. Exhausting the
// attempt budget leaves the image in its last observed status and surfaces a
// warning rather than forcing a failed transition.
func (uc *PollResultsUseCase) PollImage(ctx context.Context, submissionID, imageID string) error {
	return uc.pollImage(ctx, submissionID, imageID)
}

func (uc *PollResultsUseCase) pollImage(ctx context.Context, submissionID, imageID string) error {
	started := time.Now()

	if err := uc.backend.TriggerPrediction(ctx, imageID); err != nil {
		return uc.abort(ctx, submissionID, imageID, started, "trigger prediction", err)
	}

	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := uc.limiter.Wait(ctx); err != nil {
			return err
		}

		if uc.metrics != nil {
			uc.metrics.PollAttempt()
		}
		res, err := uc.backend.FetchResult(ctx, imageID)
		if err != nil {
			return uc.abort(ctx, submissionID, imageID, started, "fetch result", err)
		}

		if res.Status.Terminal() {
			uc.applyTerminal(ctx, submissionID, imageID, *res)
			if uc.metrics != nil {
				uc.metrics.PollOutcome(string(res.Status), time.Since(started))
			}
			return nil
		}

		uc.session.ApplyStatus(submissionID, imageID, res.Status)

		if attempt == uc.maxAttempts {
			break
		}
		timer := time.NewTimer(uc.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	uc.logger.Warn("poll_timeout",
		"submission_id", submissionID,
		"image_id", imageID,
		"attempts", uc.maxAttempts,
	)
	if uc.metrics != nil {
		uc.metrics.PollOutcome("timeout", time.Since(started))
	}
	return nil
}

func (uc *PollResultsUseCase) applyTerminal(ctx context.Context, submissionID, imageID string, res domain.PredictionResult) {
	if !uc.session.ApplyResult(submissionID, imageID, res) {
		uc.logger.Warn("reconciliation_warning",
			"submission_id", submissionID,
			"image_id", imageID,
			"reason", "poll result did not match any known report",
		)
		return
	}
	uc.publish(ctx, domain.StatusEvent{
		Kind:         domain.EventImageStatus,
		SubmissionID: submissionID,
		ImageID:      imageID,
		Status:       res.Status,
		Detail:       res.Error,
		At:           time.Now().UTC(),
	})
}

func (uc *PollResultsUseCase) abort(ctx context.Context, submissionID, imageID string, started time.Time, operation string, err error) error {
	uc.session.ApplyPollError(submissionID, imageID, err.Error())
	if uc.metrics != nil {
		uc.metrics.PollOutcome("error", time.Since(started))
	}
	uc.publish(ctx, domain.StatusEvent{
		Kind:         domain.EventImageStatus,
		SubmissionID: submissionID,
		ImageID:      imageID,
		Detail:       err.Error(),
		At:           time.Now().UTC(),
	})
	return domain.WrapError(domain.ErrPoll, operation, err)
}

func (uc *PollResultsUseCase) publish(ctx context.Context, event domain.StatusEvent) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishStatus(ctx, event); err != nil {
		uc.logger.Warn("status_publish_failed", "error", err)
	}
}
