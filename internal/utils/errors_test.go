package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf_WrappedAppError(t *testing.T) {
	inner := E(CodeTooShort, "Capture.StopListening", "recording too short", nil)
	wrapped := fmt.Errorf("stop: %w", inner)

	if got := CodeOf(wrapped); got != CodeTooShort {
		t.Fatalf("CodeOf = %q, want %q", got, CodeTooShort)
	}
	if !IsCode(wrapped, CodeTooShort) {
		t.Fatalf("IsCode should see through fmt wrapping")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestHTTPStatus_DomainCodes(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodePermissionDenied, http.StatusForbidden},
		{CodeDeviceBusy, http.StatusConflict},
		{CodeTooLong, http.StatusBadRequest},
		{CodeUnsupportedFormat, http.StatusUnsupportedMediaType},
		{CodeTranscriptionFailed, http.StatusServiceUnavailable},
		{CodeSubmissionInProgress, http.StatusConflict},
		{CodeLoadFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := HTTPStatus(E(tc.code, "op", "msg", nil)); got != tc.want {
				t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
			}
		})
	}
	if got := HTTPStatus(ErrNotFound); got != http.StatusNotFound {
		t.Fatalf("ErrNotFound status = %d", got)
	}
}

func TestUserMessage_IsSpecific(t *testing.T) {
	seen := map[string]Code{}
	for _, code := range []Code{CodePermissionDenied, CodeDeviceNotFound, CodeDeviceBusy, CodeEmptyRecording, CodeTooShort, CodeTooLong, CodeUnsupportedFormat} {
		msg := UserMessage(E(code, "op", "", nil))
		if msg == "" {
			t.Fatalf("%s has no user message", code)
		}
		if prev, dup := seen[msg]; dup {
			t.Fatalf("%s and %s share the message %q", code, prev, msg)
		}
		seen[msg] = code
	}

	if got := UserMessage(E(CodeConflict, "op", "recording already in progress", nil)); got != "recording already in progress" {
		t.Fatalf("fallback to safe message, got %q", got)
	}
}
