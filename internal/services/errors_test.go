package services_test

import (
	"errors"
	"strings"
	"testing"

	"redub/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "remix", "mix", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"remix", "mix", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsUserError(t *testing.T) {
	if !services.IsUserError(services.Wrap(services.ErrValidation, "input", "", "no segments", nil)) {
		t.Fatal("expected validation error to be a user error")
	}
	if services.IsUserError(services.Wrap(services.ErrExternalTool, "mux", "", "exit 1", nil)) {
		t.Fatal("expected tool error not to be a user error")
	}
	if services.IsUserError(nil) {
		t.Fatal("expected nil not to be a user error")
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("plain"), "internal"},
		{services.Wrap(services.ErrTimeout, "mux", "ffmpeg", "", nil), "timeout"},
		{services.Wrap(services.ErrExternalTool, "synthesize", "", "", services.ErrValidation), "validation"},
		{services.Wrap(services.ErrUnavailable, "background", "separator", "", nil), "unavailable"},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
