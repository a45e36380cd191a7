package httpx

import (
	"net/http"
	"testing"

	"github.com/sundayezeilo/linktracker/internal/errx"
)

func TestErrorKindToStatus(t *testing.T) {
	tests := []struct {
		name       string
		kind       errx.Kind
		wantStatus int
	}{
		{"not found", errx.NotFound, http.StatusNotFound},
		{"conflict", errx.Conflict, http.StatusConflict},
		{"invalid", errx.Invalid, http.StatusBadRequest},
		{"unauthorized", errx.Unauthorized, http.StatusUnauthorized},
		{"unavailable", errx.Unavailable, http.StatusServiceUnavailable},
		{"internal", errx.Internal, http.StatusInternalServerError},
		{"unknown", errx.Unknown, http.StatusInternalServerError},
		{"out of range kind", errx.Kind(99), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKindToStatus(tt.kind); got != tt.wantStatus {
				t.Errorf("ErrorKindToStatus(%v) = %d, want %d", tt.kind, got, tt.wantStatus)
			}
		})
	}
}

func TestErrorKindToCode(t *testing.T) {
	tests := []struct {
		name     string
		kind     errx.Kind
		wantCode string
	}{
		{"not found", errx.NotFound, "not_found"},
		{"conflict", errx.Conflict, "conflict"},
		{"invalid", errx.Invalid, "invalid_input"},
		{"unauthorized", errx.Unauthorized, "unauthorized"},
		{"unavailable", errx.Unavailable, "unavailable"},
		{"internal", errx.Internal, "internal_error"},
		{"unknown", errx.Unknown, "internal_error"},
		{"out of range kind", errx.Kind(99), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKindToCode(tt.kind); got != tt.wantCode {
				t.Errorf("ErrorKindToCode(%v) = %q, want %q", tt.kind, got, tt.wantCode)
			}
		})
	}
}

func TestErrorKindMappingConsistency(t *testing.T) {
	kinds := []errx.Kind{
		errx.Unknown, errx.NotFound, errx.Conflict, errx.Invalid,
		errx.Unauthorized, errx.Unavailable, errx.Internal,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			status := ErrorKindToStatus(kind)
			code := ErrorKindToCode(kind)

			if status < 100 || status >= 600 {
				t.Errorf("invalid HTTP status code: %d", status)
			}
			if code == "" {
				t.Error("ErrorKindToCode returned empty string")
			}
		})
	}
}
