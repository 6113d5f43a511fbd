package utils

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

type abortShaped struct{ msg string }

func (e abortShaped) Error() string { return e.msg }
func (e abortShaped) Name() string  { return "AbortError" }

type otherNamed struct{ msg string }

func (e otherNamed) Error() string { return e.msg }
func (e otherNamed) Name() string  { return "TypeError" }

func TestIsCancellation_CanonicalTypes(t *testing.T) {
	cases := []error{
		NewCancellationError("stats", nil),
		fmt.Errorf("wrapped: %w", NewCancellationError("stats", errors.New("boom"))),
		context.Canceled,
		context.DeadlineExceeded,
		&url.Error{Op: "Get", URL: "https://example.supabase.co", Err: context.Canceled},
	}
	for _, err := range cases {
		if !IsCancellation(err) {
			t.Errorf("expected %v to be treated as cancellation", err)
		}
	}
}

func TestIsCancellation_ByName(t *testing.T) {
	if !IsCancellation(abortShaped{msg: "request did not complete"}) {
		t.Fatal("AbortError name should be recognised")
	}
	if IsCancellation(otherNamed{msg: "request did not complete"}) {
		t.Fatal("TypeError without abort text should not be a cancellation")
	}
}

func TestIsCancellation_FuzzyFallback(t *testing.T) {
	for _, msg := range []string{
		"The user aborted a request.",
		"signal is aborted without reason",
		"net/http: request canceled while waiting for connection",
		"operation was Cancelled by caller",
	} {
		if !IsCancellation(errors.New(msg)) {
			t.Errorf("expected fuzzy match for %q", msg)
		}
	}
}

func TestIsCancellation_RealFailures(t *testing.T) {
	for _, err := range []error{
		nil,
		errors.New("dial tcp 10.0.0.1:443: connect: connection refused"),
		errors.New("duplicate key value violates unique constraint"),
		otherNamed{msg: "Failed to fetch"},
	} {
		if IsCancellation(err) {
			t.Errorf("did not expect %v to be a cancellation", err)
		}
	}
}

type taggedFailure struct {
	msg       string
	cancelled bool
	cause     error
}

func (e taggedFailure) Error() string   { return e.msg }
func (e taggedFailure) Unwrap() error   { return e.cause }
func (e taggedFailure) Cancelled() bool { return e.cancelled }

func TestIsCancellation_TaggedErrorsAnswerForThemselves(t *testing.T) {
	notCancelled := []error{
		taggedFailure{msg: "canceling statement due to statement timeout"},
		fmt.Errorf("stats: %w", taggedFailure{msg: "current transaction is aborted"}),
		taggedFailure{msg: "Client.Timeout exceeded", cause: context.DeadlineExceeded},
	}
	for _, err := range notCancelled {
		if IsCancellation(err) {
			t.Errorf("did not expect tagged %v to be a cancellation", err)
		}
	}
	if !IsCancellation(taggedFailure{msg: "stopped", cancelled: true}) {
		t.Error("tagged cancellation should be recognised")
	}
}
