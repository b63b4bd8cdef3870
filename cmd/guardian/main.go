package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/forestguardian/guardian/internal/bootstrap"
	"github.com/forestguardian/guardian/internal/config"
	"github.com/forestguardian/guardian/internal/core/domain"
)

// guardian uploads a batch of forest images and watches them to completion from
// the terminal, without the web UI.
//
//	guardian -upload img1.jpg -upload img2.png
//	guardian -upload more.jpg -submission <id>
//	guardian -follow
func main() {
	var (
		uploads      uploadList
		submissionID = flag.String("submission", "", "append to an existing submission instead of creating a new one")
		follow       = flag.Bool("follow", false, "subscribe to the status event stream and print events")
		export       = flag.String("export", "", "after completion, write report_<submission>.xlsx to this directory")
	)
	flag.Var(&uploads, "upload", "image file to upload (repeatable)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, "guardian-cli")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	switch {
	case *follow:
		if app.Queue == nil {
			log.Fatal("follow mode needs NATS_URL configured")
		}
		err = followEvents(ctx, app)
	case len(uploads) > 0:
		err = uploadAndWatch(ctx, app, uploads, *submissionID, *export)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("guardian: %v", err)
	}
}

func uploadAndWatch(ctx context.Context, app *bootstrap.App, paths []string, submissionID, exportDir string) error {
	files := make([]domain.FileUpload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, domain.FileUpload{
			Filename:    filepath.Base(path),
			ContentType: contentTypeFor(path),
			Size:        int64(len(data)),
			Data:        data,
		})
	}

	outcome, err := app.UploadUC.Upload(ctx, files, submissionID)
	if err != nil {
		return err
	}
	for _, rejection := range outcome.Rejected {
		fmt.Fprintf(os.Stderr, "skipped %s: %s\n", rejection.Filename, rejection.Reason)
	}
	fmt.Printf("submission %s: %d image(s) uploaded\n",
		outcome.Receipt.SubmissionID, len(outcome.Receipt.Images))

	// Upload already started one polling loop per image; block until they all
	// settle so the process exits with the final picture.
	app.PollUC.Wait()

	report, err := app.Session.Select(outcome.Receipt.SubmissionID)
	if err != nil {
		return fmt.Errorf("report %s not tracked after upload: %w", outcome.Receipt.SubmissionID, err)
	}
	printReport(report)

	if exportDir != "" {
		data, err := app.Exporter.XLSX(report)
		if err != nil {
			return fmt.Errorf("export spreadsheet: %w", err)
		}
		path := filepath.Join(exportDir, fmt.Sprintf("report_%s.xlsx", report.SubmissionID))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write spreadsheet: %w", err)
		}
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}

func followEvents(ctx context.Context, app *bootstrap.App) error {
	fmt.Println("following status events, ctrl-c to stop")
	return app.Queue.SubscribeStatus(ctx, func(_ context.Context, event domain.StatusEvent) {
		switch event.Kind {
		case domain.EventImageStatus:
			fmt.Printf("%s image=%s submission=%s status=%s %s\n",
				event.At.Format(time.TimeOnly), event.ImageID, event.SubmissionID, event.Status, event.Detail)
		case domain.EventReportRefreshed:
			fmt.Printf("%s reports refreshed\n", event.At.Format(time.TimeOnly))
		}
	})
}

func printReport(report domain.Report) {
	fmt.Printf("report %s status=%s images=%d areas=%d avg_confidence=%.2f\n",
		report.SubmissionID, report.Status, report.ImageCount,
		report.TotalDetectedAreas, report.AverageConfidence)
	for _, img := range report.Images {
		line := fmt.Sprintf("  %-30s %-10s", img.Filename, img.Status)
		if img.Status == domain.StatusProcessed {
			line += fmt.Sprintf(" conf=%.2f areas=%d time=%.1fs", img.Confidence, img.DetectedAreas, img.ProcessingTime)
			if len(img.Species) > 0 {
				line += " species=" + strings.Join(img.Species, ",")
			}
		}
		if img.Error != "" {
			line += " error=" + img.Error
		}
		fmt.Println(line)
	}
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type uploadList []string

func (l *uploadList) String() string {
	return strings.Join(*l, ",")
}

func (l *uploadList) Set(value string) error {
	*l = append(*l, value)
	return nil
}
