package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/forestguardian/guardian/internal/core/domain"
)

// HTTPStatusError carries a non-success backend response. Detail holds the
// server-provided message when the body is a FastAPI-style {"detail": ...}
// payload, otherwise the raw body.
type HTTPStatusError struct {
	Path       string
	StatusCode int
	Status     string
	Detail     string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("backend %s status: %s", e.Path, e.Status)
	}
	return fmt.Sprintf("backend %s status: %s: %s", e.Path, e.Status, e.Detail)
}

func (e *HTTPStatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrReportNotFound
	}
	if isRetryableHTTPStatus(e.StatusCode) {
		return domain.ErrTemporary
	}
	return nil
}

func newStatusError(path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	detail := strings.TrimSpace(string(body))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	}

	return &HTTPStatusError{
		Path:       path,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     detail,
	}
}

// Detail extracts the server-provided message from an upload or poll error, if
// one is present.
func Detail(err error) (string, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && strings.TrimSpace(statusErr.Detail) != "" {
		return statusErr.Detail, true
	}
	return "", false
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
