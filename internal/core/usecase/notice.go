package usecase

import (
	"errors"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

const (
	genericServerMessage    = "An error occurred while communicating with the server"
	temporaryFailureMessage = "Unable to reach the admissions server. Please try again."
)

// Success messages shown after a confirmed write.
const (
	PreferenceSavedMessage  = "Course preference saved successfully!"
	FilesUploadedMessage    = "Files uploaded successfully!"
	SubmittedMessage        = "Application submitted successfully!"
	AlreadySubmittedMessage = "You already submitted an application."
)

// Notice is the single user-visible outcome of an action.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

func SuccessNotice(message string) Notice {
	return Notice{Level: NoticeSuccess, Message: message}
}

// NoticeFor converts any workflow error into the message shown to the user.
func NoticeFor(err error) Notice {
	if err == nil {
		return SuccessNotice("Done")
	}

	var rejection *domain.Rejection
	if errors.As(err, &rejection) {
		return Notice{Level: NoticeError, Message: rejection.Message}
	}

	switch {
	case domain.IsKind(err, domain.ErrNoSession):
		return Notice{Level: NoticeError, Message: "Please login to continue"}
	case domain.IsKind(err, domain.ErrInvalidInput):
		return Notice{Level: NoticeError, Message: err.Error()}
	case domain.IsKind(err, domain.ErrNotFound):
		return Notice{Level: NoticeError, Message: genericServerMessage}
	}

	// A message from the server wins over the transient fallback, whatever the status.
	if msg, ok := domain.MessageOf(err); ok {
		return Notice{Level: NoticeError, Message: msg}
	}

	switch {
	case domain.IsKind(err, domain.ErrClosed):
		return Notice{Level: NoticeError, Message: "The request was cancelled."}
	case domain.IsKind(err, domain.ErrTemporary):
		return Notice{Level: NoticeError, Message: temporaryFailureMessage}
	}
	return Notice{Level: NoticeError, Message: genericServerMessage}
}

// SubmissionNotice reports the outcome of a submit that did not fail.
func SubmissionNotice(result *domain.SubmissionResult) Notice {
	if result != nil && result.Outcome == domain.OutcomeAlreadySubmitted {
		return SuccessNotice(AlreadySubmittedMessage)
	}
	return SuccessNotice(SubmittedMessage)
}
