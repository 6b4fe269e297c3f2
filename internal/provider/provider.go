package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider is a single text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrorClass drives the router's retry decision for a failed call.
type ErrorClass int

const (
	// ClassPermanent errors will not heal on retry: bad request, auth, a
	// model that does not exist. The router moves on to the next provider.
	ClassPermanent ErrorClass = iota
	// ClassTransient errors may heal quickly: timeouts, connection resets,
	// plain 5xx. Retried on a short backoff.
	ClassTransient
	// ClassLoading means the backend is warming a model up. Retried on a
	// longer backoff than transient errors.
	ClassLoading
)

func (c ErrorClass) String() string {
	switch c {
	case ClassPermanent:
		return "permanent"
	case ClassTransient:
		return "transient"
	case ClassLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// CallError carries the classification of a failed provider call.
type CallError struct {
	Provider string
	Class    ErrorClass
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Class, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the error class of a provider call. Unclassified errors
// count as transient so a flaky backend still gets its retries.
func ClassOf(err error) ErrorClass {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Class
	}
	return ClassTransient
}
