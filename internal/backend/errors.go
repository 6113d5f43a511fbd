package backend

import (
	"errors"
	"fmt"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindBackend Kind = iota
	KindConfig
	KindNetwork
	KindCors
	KindDuplicate
	KindNotFound
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "CONFIG_ERROR"
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindCors:
		return "CORS_ERROR"
	case KindDuplicate:
		return "DUPLICATE_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindCancelled:
		return "CANCELLED"
	default:
		return "BACKEND_ERROR"
	}
}

// Error is the single tagged error type returned by Client and by the
// services built on top of it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Cancelled reports whether e is a cancellation. Only KindCancelled, or a
// KindBackend error wrapping a CancellationError, qualifies; the message
// text is never consulted, so a server error mentioning "cancel" or
// "aborted" stays a failure.
func (e *Error) Cancelled() bool {
	if e.Kind == KindCancelled {
		return true
	}
	var ce *utils.CancellationError
	return e.Kind == KindBackend && errors.As(e.Err, &ce)
}

// Is lets callers match on a kind sentinel, e.g. errors.Is(err, backend.ErrDuplicate).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrNetwork   = &Error{Kind: KindNetwork}
	ErrCors      = &Error{Kind: KindCors}
	ErrDuplicate = &Error{Kind: KindDuplicate}
	ErrNotFound  = &Error{Kind: KindNotFound}
	ErrBackend   = &Error{Kind: KindBackend}
)

func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the kind of err. Cancellations are reported as
// KindCancelled even when they were never wrapped by this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindBackend
	}
	var be *Error
	if errors.As(err, &be) {
		if be.Cancelled() {
			return KindCancelled
		}
		return be.Kind
	}
	if utils.IsCancellation(err) {
		return KindCancelled
	}
	return KindBackend
}
