package httpadapter

import (
	"errors"
	"net/http"

	"github.com/forestguardian/guardian/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrReportNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)

	payload := map[string]any{"error": err.Error()}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		payload["rejected"] = validationErr.Rejections
	}
	writeJSON(w, status, payload)
}
