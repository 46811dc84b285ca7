package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrIntegrity         = errors.New("integrity mismatch")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrFormat            = errors.New("format error")
	ErrFileSystem        = errors.New("filesystem error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
)

// Failure kinds reported in logs and summaries.
const (
	KindExternal           = "transient_external_failure"
	KindIntegrity          = "integrity_mismatch"
	KindResourceExhaustion = "resource_exhaustion"
	KindFormat             = "format_error"
	KindFileSystem         = "filesystem_error"
	KindValidation         = "validation"
	KindConfiguration      = "configuration"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its failure taxonomy label. Errors without a known
// marker are treated as transient external failures since they are retried on
// the next run like any other stage fault.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhaustion
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrFileSystem):
		return KindFileSystem
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindExternal
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
