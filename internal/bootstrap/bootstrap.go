package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/forestguardian/guardian/internal/config"
	"github.com/forestguardian/guardian/internal/core/ports"
	"github.com/forestguardian/guardian/internal/core/usecase"
	"github.com/forestguardian/guardian/internal/infrastructure/api"
	"github.com/forestguardian/guardian/internal/infrastructure/cache"
	"github.com/forestguardian/guardian/internal/infrastructure/export"
	natsqueue "github.com/forestguardian/guardian/internal/infrastructure/queue/nats"
	"github.com/forestguardian/guardian/internal/infrastructure/resilience"
	"github.com/forestguardian/guardian/internal/observability/logging"
	"github.com/forestguardian/guardian/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.SessionMetrics

	Backend   *api.Client
	Session   *usecase.Session
	UploadUC  *usecase.UploadBatchUseCase
	PollUC    *usecase.PollResultsUseCase
	RefreshUC *usecase.RefreshReportsUseCase
	Exporter  *export.Exporter
	Queue     *natsqueue.Queue

	closeFn func()
}

func New(cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	sessionMetrics := metrics.NewSessionMetrics(service)

	executor := resilience.NewExecutor(resilience.DefaultPolicy())
	backend := api.NewWithOptions(cfg.BackendURL, cfg.BackendToken, api.Options{
		Executor: executor,
	})

	var queue *natsqueue.Queue
	if cfg.NATSURL != "" {
		q, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("init status queue: %w", err)
		}
		queue = q
	}

	session := usecase.NewSession(
		time.Duration(cfg.NotificationTTLSeconds)*time.Second,
		logging.WithComponent(logger, "session"),
	)

	pollUC := usecase.NewPollResultsUseCase(
		backend,
		session,
		publisherOrNil(queue),
		time.Duration(cfg.PollIntervalSeconds)*time.Second,
		cfg.PollMaxAttempts,
		cfg.PollRateLimitRPS,
		sessionMetrics,
		logging.WithComponent(logger, "poller"),
	)
	uploadUC := usecase.NewUploadBatchUseCase(
		backend,
		session,
		pollUC,
		cfg.MaxUploadMB<<20,
		logging.WithComponent(logger, "uploader"),
	)
	refreshUC := usecase.NewRefreshReportsUseCase(
		backend,
		session,
		publisherOrNil(queue),
		time.Duration(cfg.RefreshIntervalSeconds)*time.Second,
		sessionMetrics,
		logging.WithComponent(logger, "reconciler"),
	)

	blobs := cache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	exporter := export.NewExporter(backend, blobs, logging.WithComponent(logger, "export"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   sessionMetrics,
		Backend:   backend,
		Session:   session,
		UploadUC:  uploadUC,
		PollUC:    pollUC,
		RefreshUC: refreshUC,
		Exporter:  exporter,
		Queue:     queue,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// publisherOrNil avoids handing the usecases a non-nil interface wrapping a nil
// queue.
func publisherOrNil(q *natsqueue.Queue) ports.StatusPublisher {
	if q == nil {
		return nil
	}
	return q
}
