package models

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound = status.Errorf(codes.NotFound, "not found")

	// ErrAllProvidersUnavailable is returned by the provider router after
	// every configured provider exhausted its retry budget.
	ErrAllProvidersUnavailable = status.Errorf(codes.Unavailable, "all providers unavailable")

	// ErrJobTimeout marks jobs force-failed by the sweeper.
	ErrJobTimeout = status.Errorf(codes.DeadlineExceeded, "job timed out")

	// ErrShutdown marks jobs failed because the pipeline stopped before
	// they finished.
	ErrShutdown = status.Errorf(codes.Aborted, "shutdown in progress")
)

// AlreadyRunningError is fatal at startup: a second live pipeline instance
// holds the lock.
type AlreadyRunningError struct {
	OwnerPID int
	Hostname string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("another instance is already running (pid %d on %s)", e.OwnerPID, e.Hostname)
}
