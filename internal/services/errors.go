package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error markers. Collaborators and stages wrap their failures with exactly
// one of these so callers can classify them with errors.Is.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrUnavailable   = errors.New("collaborator unavailable")
	ErrTransient     = errors.New("transient failure")
)

// kinds is ordered so the most specific marker wins in Kind.
var kinds = []struct {
	marker error
	name   string
	user   bool
}{
	{ErrValidation, "validation", true},
	{ErrConfiguration, "configuration", true},
	{ErrNotFound, "not_found", true},
	{ErrTimeout, "timeout", false},
	{ErrUnavailable, "unavailable", false},
	{ErrExternalTool, "external_tool", false},
	{ErrTransient, "transient", false},
}

// Wrap tags err with marker and prefixes it with "stage: operation: message".
// A nil marker is treated as ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinDetail(stage, operation, message)
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// Kind names the marker carried by err for logs and job records. Errors
// without a marker report "internal"; nil reports "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	return "internal"
}

// IsUserError reports whether err stems from bad input or configuration
// rather than a tool or collaborator fault.
func IsUserError(err error) bool {
	if err == nil {
		return false
	}
	for _, k := range kinds {
		if k.user && errors.Is(err, k.marker) {
			return true
		}
	}
	return false
}

func joinDetail(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}
