package docling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/docextract/internal/core/domain"
	"github.com/kirillkom/docextract/internal/infrastructure/resilience"
)

var errConversionFailed = errors.New("docling reported conversion failure")

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "docling status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("docling %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("docling %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyDoclingError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// mapDoclingError marks inputs the service refuses as unsupported.
func mapDoclingError(err error) error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
			return domain.WrapError(domain.ErrUnsupportedInput, "docling convert", err)
		}
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "docling convert", err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
