package portalapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/resilience"
)

const maxErrorBody = 4096

// HTTPStatusError is a non-2xx answer from the admissions backend.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "portal status error"
	}
	if e.Message == "" {
		return fmt.Sprintf("portal %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("portal %s status: %s: %s", e.Operation, e.Status, e.Message)
}

// ServerMessage is the backend's own explanation, shown to the user verbatim.
func (e *HTTPStatusError) ServerMessage() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newStatusError(operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    serverMessage(body),
	}
}

// serverMessage takes the "message" field of a JSON error body, or the whole
// body when it is plain text.
func serverMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "{") {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			return strings.TrimSpace(payload.Message)
		}
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func kindForStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case isRetryableHTTPStatus(statusCode):
		return domain.ErrTemporary
	default:
		return domain.ErrServer
	}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

func classifyPortalError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		// 4xx answers mean the backend is healthy.
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// toDomainError attaches a domain kind to a failed call.
func toDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{domain.ErrNotFound, domain.ErrUnauthorized, domain.ErrTemporary, domain.ErrServer} {
		if domain.IsKind(err, kind) {
			return err
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.WrapError(kindForStatus(statusErr.StatusCode), operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if resilience.IsCircuitOpen(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrServer, operation, err)
}
