package httpadapter

import (
	"net/http"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrMissingMandatoryDocument):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoSession), domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrClosed):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcomeLabel names an error kind for the workflow action counter.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "rejected"
	case domain.IsKind(err, domain.ErrBusy):
		return "busy"
	case domain.IsKind(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}
