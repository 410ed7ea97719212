package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Every error leaving a service boundary wraps exactly one so
// callers can classify it with errors.Is.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap tags err with marker and prefixes it with "stage: operation: message",
// omitting empty parts. A nil marker is treated as ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, p := range []string{stage, operation, message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// Retryable reports whether err carries a transient or timeout marker and no
// permanent one.
func Retryable(err error) bool {
	for _, permanent := range []error{ErrValidation, ErrConfiguration, ErrNotFound} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}
