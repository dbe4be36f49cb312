package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"canceled", context.Canceled, http.StatusRequestTimeout},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"limit", New(CodeLimitExceeded, "too big", nil), http.StatusRequestEntityTooLarge},
		{"validation", New(CodeValidationFailed, "missing", nil), http.StatusUnprocessableEntity},
		{"not terminal", New(CodeNotTerminalStep, "not yet", nil), http.StatusConflict},
		{"wrapped submission", fmt.Errorf("ctx: %w", New(CodeSubmissionFailed, "down", nil)), http.StatusBadGateway},
		{"unknown code", New("SOMETHING", "x", nil), http.StatusBadRequest},
	}

	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("%s: HTTPStatus = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := New(CodeInternal, "save failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
	if CodeOf(fmt.Errorf("outer: %w", err)) != CodeInternal {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Fatal("plain errors should map to INTERNAL_ERROR")
	}
	if got := New(CodeInvalidPDF, "broken", nil).Error(); got != "INVALID_PDF: broken" {
		t.Fatalf("unexpected message: %q", got)
	}
}
