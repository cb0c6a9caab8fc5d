package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
	ErrServer       = errors.New("server rejected request")
	ErrBusy         = errors.New("operation already in progress")
	ErrNoSession    = errors.New("no active session")
	ErrClosed       = errors.New("workspace closed")
)

// Validation failures. Each one also matches ErrInvalidInput.
var (
	ErrDuplicateCourse          = validationError("course already selected for another priority")
	ErrInvalidPriority          = validationError("priority slot out of range")
	ErrUnknownDocumentType      = validationError("unknown document type")
	ErrEmptyFile                = validationError("no file selected for upload")
	ErrFileTooLarge             = validationError("file exceeds the upload size limit")
	ErrUnreadableFile           = validationError("file could not be read")
	ErrMissingMandatoryDocument = validationError("mandatory document missing")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func validationError(msg string) error {
	return &kindError{msg: msg, kind: ErrInvalidInput}
}

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

// ServerMessage is the text the backend attached to a rejected request.
type ServerMessage interface {
	ServerMessage() string
}

// MessageOf returns the backend-provided message carried by err, if any.
func MessageOf(err error) (string, bool) {
	var carrier ServerMessage
	if errors.As(err, &carrier) {
		msg := carrier.ServerMessage()
		return msg, msg != ""
	}
	return "", false
}

// Rejection is a client-side refusal with a message meant for the user.
type Rejection struct {
	Reason  error
	Message string
}

func (r *Rejection) Error() string { return r.Message }

func (r *Rejection) Unwrap() error { return r.Reason }

func Reject(reason error, format string, args ...any) error {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
