package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/forestguardian/guardian/internal/core/domain"
	"github.com/forestguardian/guardian/internal/core/usecase"
	"github.com/forestguardian/guardian/internal/infrastructure/export"
	"github.com/forestguardian/guardian/internal/observability/metrics"
)

// Router exposes the session core over a local HTTP API: the headless stand-in
// for the single-page application that originally drove this flow.
type Router struct {
	uploadUC  *usecase.UploadBatchUseCase
	refreshUC *usecase.RefreshReportsUseCase
	session   *usecase.Session
	exporter  *export.Exporter

	rateLimitRPS   float64
	rateLimitBurst int
	httpMetrics    *metrics.HTTPServerMetrics
	sessionMetrics *metrics.SessionMetrics
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPMetrics    *metrics.HTTPServerMetrics
	SessionMetrics *metrics.SessionMetrics
}

func NewRouter(
	uploadUC *usecase.UploadBatchUseCase,
	refreshUC *usecase.RefreshReportsUseCase,
	session *usecase.Session,
	exporter *export.Exporter,
	cfg Config,
) *Router {
	return &Router{
		uploadUC:       uploadUC,
		refreshUC:      refreshUC,
		session:        session,
		exporter:       exporter,
		rateLimitRPS:   cfg.RateLimitRPS,
		rateLimitBurst: cfg.RateLimitBurst,
		httpMetrics:    cfg.HTTPMetrics,
		sessionMetrics: cfg.SessionMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /api/v1/submissions", rt.uploadBatch)
	mux.HandleFunc("GET /api/v1/reports", rt.listReports)
	mux.HandleFunc("POST /api/v1/reports/refresh", rt.refreshReports)
	mux.HandleFunc("GET /api/v1/reports/{submission_id}", rt.viewReport)
	mux.HandleFunc("POST /api/v1/reports/{submission_id}/index", rt.setImageIndex)
	mux.HandleFunc("GET /api/v1/reports/{submission_id}/export.zip", rt.exportZIP)
	mux.HandleFunc("GET /api/v1/reports/{submission_id}/export.xlsx", rt.exportXLSX)
	mux.HandleFunc("GET /api/v1/images/{image_id}", rt.downloadImage)

	var handler http.Handler = mux
	handler = rt.metricsMiddleware(handler)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const maxUploadMemory = 64 << 20

func (rt *Router) uploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form required"})
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	files := make([]domain.FileUpload, 0, len(headers))
	for _, header := range headers {
		part, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read file %s", header.Filename)})
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read file %s", header.Filename)})
			return
		}
		files = append(files, domain.FileUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        data,
		})
	}

	submissionID := strings.TrimSpace(r.FormValue("submission_id"))
	outcome, err := rt.uploadUC.Upload(r.Context(), files, submissionID)
	if rt.sessionMetrics != nil {
		accepted := 0
		if outcome != nil && outcome.Receipt != nil {
			accepted = len(outcome.Receipt.Images)
		}
		rt.sessionMetrics.UploadDone(accepted, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, outcome)
}

type reportsView struct {
	Success      bool                  `json:"success"`
	Reports      []domain.Report       `json:"reports"`
	Loading      bool                  `json:"loading"`
	Notification *usecase.Notification `json:"notification,omitempty"`
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	view := reportsView{
		Success: true,
		Reports: rt.session.Reports(),
		Loading: rt.session.Loading(),
	}
	if notification, ok := rt.session.Notification(); ok {
		view.Notification = &notification
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) refreshReports(w http.ResponseWriter, r *http.Request) {
	// Explicit user-initiated refresh: the visible variant.
	if err := rt.refreshUC.Refresh(r.Context(), false); err != nil {
		writeError(w, err)
		return
	}
	rt.listReports(w, r)
}

func (rt *Router) viewReport(w http.ResponseWriter, r *http.Request) {
	report, err := rt.session.Select(r.PathValue("submission_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
}

func (rt *Router) setImageIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if _, err := rt.session.Select(r.PathValue("submission_id")); err != nil {
		writeError(w, err)
		return
	}
	rt.session.SetCurrentIndex(req.Index)
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportZIP(w http.ResponseWriter, r *http.Request) {
	report, err := rt.session.Select(r.PathValue("submission_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := rt.exporter.ZIP(r.Context(), report)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="report_%s.zip"`, report.SubmissionID))
	_, _ = w.Write(data)
}

func (rt *Router) exportXLSX(w http.ResponseWriter, r *http.Request) {
	report, err := rt.session.Select(r.PathValue("submission_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := rt.exporter.XLSX(report)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="report_%s.xlsx"`, report.SubmissionID))
	_, _ = w.Write(data)
}

func (rt *Router) downloadImage(w http.ResponseWriter, r *http.Request) {
	data, err := rt.exporter.Fetch(r.Context(), r.PathValue("image_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
