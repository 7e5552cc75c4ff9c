// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/cherenkovlab/phspstore/pkg/record"
)

// Sentinel errors for common conditions.
var (
	ErrRunNotActive    = errors.New("run is not active")
	ErrRunActive       = errors.New("run is already active")
	ErrChannelDisabled = errors.New("channel is disabled")
	ErrNotPrimary      = errors.New("operation requires the primary thread")
	ErrWriterClosed    = errors.New("writer is closed")
	ErrInvalidFormat   = errors.New("invalid output format")
	ErrTruncatedStream = errors.New("truncated record stream")
)

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FlushError represents a failed buffer flush. The records of that flush
// attempt are lost; the run continues.
type FlushError struct {
	Channel record.Channel
	Path    string
	Records int
	Err     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush error: channel=%s path=%s records=%d: %v",
		e.Channel, e.Path, e.Records, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// MergeError represents a failure while merging per-thread text files.
type MergeError struct {
	ThreadID int
	Path     string
	Err      error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge error: thread=%d path=%s: %v",
		e.ThreadID, e.Path, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Archive uploads are retryable; the local artifact still exists.
	return e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a FlushError is retryable. Flush failures are
// never retried: the buffer is cleared on flush to bound memory, so there
// is nothing left to retry.
func (e *FlushError) IsRetryable() bool {
	return false
}
