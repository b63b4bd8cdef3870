package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUpload         = errors.New("upload failed")
	ErrPoll           = errors.New("poll failed")
	ErrReportNotFound = errors.New("report not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FileRejection names one file excluded by upload validation and why.
type FileRejection struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// ValidationError is returned when a batch contains no uploadable files. The
// rejections list every offending file; nothing is silently dropped.
type ValidationError struct {
	Rejections []FileRejection
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Rejections))
	for _, r := range e.Rejections {
		names = append(names, r.Filename)
	}
	return fmt.Sprintf("no valid files in batch: %s", strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
