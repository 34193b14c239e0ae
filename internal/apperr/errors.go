package apperr

import "fmt"

// FetchError is a transport-level failure against one source: non-2xx
// response, network error, or an unreadable body.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Source, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("fetch %s failed", e.Source)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetch(source string, err error) *FetchError {
	return &FetchError{Source: source, Err: err}
}

func NewFetchStatus(source string, statusCode int) *FetchError {
	return &FetchError{Source: source, StatusCode: statusCode}
}

// ParseError means the payload as a whole was structurally unparsable.
// Individual malformed items are skipped silently and never raise it.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s payload: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("parse %s payload failed", e.Format)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func NewParse(format string, err error) *ParseError {
	return &ParseError{Format: format, Err: err}
}

// StorageError wraps a content-store or job-ledger write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s failed", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
