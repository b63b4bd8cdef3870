package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forestguardian/guardian/internal/core/domain"
)

type fakeReportFetcher struct {
	fn    func(ctx context.Context) ([]domain.Report, error)
	calls int
}

func (f *fakeReportFetcher) FetchReports(ctx context.Context) ([]domain.Report, error) {
	f.calls++
	return f.fn(ctx)
}

func TestRefreshVisibleRaisesLoadingDuringFetch(t *testing.T) {
	session := NewSession(time.Second, testLogger())
	var loadingDuringFetch bool
	fetcher := &fakeReportFetcher{fn: func(context.Context) ([]domain.Report, error) {
		loadingDuringFetch = session.Loading()
		return []domain.Report{testReport("sub-1", time.Now(), "a")}, nil
	}}
	uc := NewRefreshReportsUseCase(fetcher, session, nil, time.Minute, nil, testLogger())

	if err := uc.Refresh(context.Background(), false); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !loadingDuringFetch {
		t.Fatal("visible refresh must raise the loading indicator")
	}
	if session.Loading() {
		t.Fatal("loading indicator must drop after the refresh")
	}
	if len(session.Reports()) != 1 {
		t.Fatalf("expected collection replaced, got %d reports", len(session.Reports()))
	}
}

func TestRefreshSilentNeverTouchesLoading(t *testing.T) {
	session := NewSession(time.Second, testLogger())
	var loadingDuringFetch bool
	fetcher := &fakeReportFetcher{fn: func(context.Context) ([]domain.Report, error) {
		loadingDuringFetch = session.Loading()
		return nil, nil
	}}
	uc := NewRefreshReportsUseCase(fetcher, session, nil, time.Minute, nil, testLogger())

	if err := uc.Refresh(context.Background(), true); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if loadingDuringFetch {
		t.Fatal("silent refresh must not raise the loading indicator")
	}
}

func TestRefreshFetchErrorKeepsCollection(t *testing.T) {
	session := NewSession(time.Second, testLogger())
	session.InsertSubmission(testReport("sub-1", time.Now(), "a"))
	fetchErr := errors.New("backend down")
	fetcher := &fakeReportFetcher{fn: func(context.Context) ([]domain.Report, error) {
		return nil, fetchErr
	}}
	uc := NewRefreshReportsUseCase(fetcher, session, nil, time.Minute, nil, testLogger())

	err := uc.Refresh(context.Background(), false)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error surfaced, got %v", err)
	}
	if len(session.Reports()) != 1 {
		t.Fatal("a failed refresh must not clear the local collection")
	}
	if session.Loading() {
		t.Fatal("loading indicator must drop on error too")
	}
}

func TestRefreshPublishesRefreshEvent(t *testing.T) {
	session := NewSession(time.Second, testLogger())
	events := &fakeStatusPublisher{}
	fetcher := &fakeReportFetcher{fn: func(context.Context) ([]domain.Report, error) {
		return nil, nil
	}}
	uc := NewRefreshReportsUseCase(fetcher, session, events, time.Minute, nil, testLogger())

	if err := uc.Refresh(context.Background(), true); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	published := events.published()
	if len(published) != 1 || published[0].Kind != domain.EventReportRefreshed {
		t.Fatalf("expected one refresh event, got %+v", published)
	}
}

func TestRunIdlesWhileEverythingIsTerminal(t *testing.T) {
	session := NewSession(time.Second, testLogger())
	done := testReport("sub-1", time.Now(), "a")
	done.Images[0].Status = domain.StatusProcessed
	done.Recompute()
	session.InsertSubmission(done)

	fetcher := &fakeReportFetcher{fn: func(context.Context) ([]domain.Report, error) {
		return nil, nil
	}}
	uc := NewRefreshReportsUseCase(fetcher, session, nil, 5*time.Millisecond, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	uc.Run(ctx)

	if fetcher.calls != 0 {
		t.Fatalf("scheduler must idle without active images, got %d fetches", fetcher.calls)
	}
}

func TestRunRefreshesWhileImagesAreActive(t *testing.T) {
	session := NewSession(time.Second, testLogger())
	session.InsertSubmission(testReport("sub-1", time.Now(), "a"))

	fetcher := &fakeReportFetcher{fn: func(context.Context) ([]domain.Report, error) {
		// Return the still-active report so the scheduler keeps going.
		return []domain.Report{testReport("sub-1", time.Now(), "a")}, nil
	}}
	uc := NewRefreshReportsUseCase(fetcher, session, nil, 5*time.Millisecond, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	uc.Run(ctx)

	if fetcher.calls == 0 {
		t.Fatal("scheduler must refresh while images are active")
	}
}
