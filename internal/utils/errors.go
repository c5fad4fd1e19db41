package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodeInternal        Code = "INTERNAL"

	// capture acquisition
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeDeviceNotFound   Code = "DEVICE_NOT_FOUND"
	CodeDeviceBusy       Code = "DEVICE_BUSY"

	// capture validation
	CodeEmptyRecording    Code = "EMPTY_RECORDING"
	CodeTooShort          Code = "TOO_SHORT"
	CodeTooLong           Code = "TOO_LONG"
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"

	// external speech services
	CodeTranscriptionFailed Code = "TRANSCRIPTION_FAILED"
	CodeSynthesisFailed     Code = "SYNTHESIS_FAILED"

	// interview flow
	CodeLoadFailed           Code = "LOAD_FAILED"
	CodeSubmitFailed         Code = "SUBMIT_FAILED"
	CodeAnalysisFailed       Code = "ANALYSIS_FAILED"
	CodeFollowUpFailed       Code = "FOLLOW_UP_FAILED"
	CodeSubmissionInProgress Code = "SUBMISSION_IN_PROGRESS"
	CodeInvalidState         Code = "INVALID_STATE"
)

// AppError is the unified error contract across layers.
type AppError struct {
	Code    Code
	Op      string // operation name, ex: "Capture.StopListening"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "error"
	}
}

func (e *AppError) Unwrap() error { return e.Err }

func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost AppError in err's chain, or "" if none.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func HTTPStatus(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidArgument, CodeEmptyRecording, CodeTooShort, CodeTooLong:
			return http.StatusBadRequest
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeForbidden, CodePermissionDenied:
			return http.StatusForbidden
		case CodeNotFound, CodeDeviceNotFound:
			return http.StatusNotFound
		case CodeConflict, CodeDeviceBusy, CodeSubmissionInProgress, CodeInvalidState:
			return http.StatusConflict
		case CodeUnsupportedFormat:
			return http.StatusUnsupportedMediaType
		case CodeUnavailable, CodeTranscriptionFailed, CodeSynthesisFailed:
			return http.StatusServiceUnavailable
		case CodeSubmitFailed, CodeAnalysisFailed, CodeFollowUpFailed, CodeLoadFailed:
			return http.StatusBadGateway
		case CodeTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusInternalServerError
		}
	}
	// fallback
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

var userMessages = map[Code]string{
	CodePermissionDenied:     "Microphone access was denied. Allow microphone access and try again.",
	CodeDeviceNotFound:       "No microphone was found. Connect a microphone and try again.",
	CodeDeviceBusy:           "The microphone is being used by another application.",
	CodeEmptyRecording:       "Nothing was recorded. Please try again.",
	CodeTooShort:             "The recording is too short. Please speak a little longer.",
	CodeTooLong:              "The recording is too long. Please keep your answer under 30 seconds.",
	CodeUnsupportedFormat:    "The recording format is not supported.",
	CodeTranscriptionFailed:  "Your answer could not be transcribed. Please record it again.",
	CodeSynthesisFailed:      "The question could not be read aloud.",
	CodeLoadFailed:           "The interview could not be loaded.",
	CodeSubmitFailed:         "Your answer could not be saved. Please try again.",
	CodeAnalysisFailed:       "Feedback is not available for this answer.",
	CodeFollowUpFailed:       "No follow-up questions are available.",
	CodeSubmissionInProgress: "Your previous answer is still being analyzed.",
}

// UserMessage returns a human-readable reason for err suitable for the UI.
// Domain codes carry fixed messages; other AppErrors fall back to their safe Message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		if m, ok := userMessages[ae.Code]; ok {
			return m
		}
		if ae.Message != "" {
			return ae.Message
		}
	}
	return http.StatusText(HTTPStatus(err))
}

// Backward-compatible sentinel errors
var (
	ErrNotFound = errors.New("not found")
)
