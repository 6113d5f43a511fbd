package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CancellationError is the canonical shape of a deliberately aborted
// operation. Boundaries that start a cancellable call (backend client,
// poller timeout) translate whatever the transport returned into this type.
type CancellationError struct {
	Op    string
	Cause error
}

func (e *CancellationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: cancelled: %v", e.Op, e.Cause)
	}
	return e.Op + ": cancelled"
}

func (e *CancellationError) Unwrap() error { return e.Cause }

// Name mirrors the name field carried by abort errors of browser-style clients.
func (e *CancellationError) Name() string { return "AbortError" }

func NewCancellationError(op string, cause error) *CancellationError {
	return &CancellationError{Op: op, Cause: cause}
}

// namedError is implemented by errors that expose a name field.
type namedError interface {
	Name() string
}

var cancellationNames = map[string]bool{
	"AbortError":     true,
	"CancelledError": true,
	"CanceledError":  true,
}

// cancelledReporter is implemented by tagged errors that already know
// whether they are a cancellation. Their answer is final.
type cancelledReporter interface {
	Cancelled() bool
}

var cancellationPhrases = []string{"abort", "signal", "cancel"}

// IsCancellation reports whether err represents an aborted operation.
// Checks run in order: canonical type, tagged errors, context errors,
// error name, then fuzzy text for untagged errors only.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}

	var ce *CancellationError
	if errors.As(err, &ce) {
		return true
	}

	var tagged cancelledReporter
	if errors.As(err, &tagged) {
		return tagged.Cancelled()
	}

	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var named namedError
	if errors.As(err, &named) && cancellationNames[named.Name()] {
		return true
	}

	return looksCancelled(err)
}

// looksCancelled only exists for errors produced outside the boundaries that
// emit CancellationError (third-party HTTP clients, SDK wrappers).
func looksCancelled(err error) bool {
	name := ""
	var named namedError
	if errors.As(err, &named) {
		name = named.Name()
	}

	combined := strings.ToLower(fmt.Sprintf("%v | %#v | %s", err, err, name))
	for _, phrase := range cancellationPhrases {
		if strings.Contains(combined, phrase) {
			return true
		}
	}
	return false
}
