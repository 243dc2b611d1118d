package extract

import (
	"errors"
	"fmt"
)

// Common extraction errors. These distinguish meanings that matter to the
// fallback chain: a corrupted input skips local conversion entirely, an
// image-size failure earns one reduced-resolution retry, and "no text" is a
// stage failure rather than a hard error.
var (
	// ErrCorrupted is returned when the corruption pre-screen rejects a file.
	// Local conversion must not be attempted after this.
	ErrCorrupted = errors.New("document failed corruption pre-screen")

	// ErrImageTooLarge is returned when page rasterization fails because the
	// rendered image exceeds size limits. Recovered once by retrying at
	// reduced resolution.
	ErrImageTooLarge = errors.New("rendered page image exceeds size limits")

	// ErrConversionFailed is returned for any other page rasterization failure.
	ErrConversionFailed = errors.New("document page conversion failed")

	// ErrNoText is returned when a stage completed but produced zero
	// non-empty entries.
	ErrNoText = errors.New("no text could be extracted")

	// ErrNoLocalEngine is returned when the local stage is requested but no
	// local OCR backend was injected.
	ErrNoLocalEngine = errors.New("local OCR backend not available")

	// ErrNoCloudBackend is returned when the direct-document stage has no
	// document-capable provider configured.
	ErrNoCloudBackend = errors.New("no document-capable cloud provider configured")

	// ErrCanceled is returned when the caller's cancel check fired.
	ErrCanceled = errors.New("extraction canceled by caller")
)

// ExtractError wraps errors with the operation and extra context, following
// the error shape used across the codebase.
type ExtractError struct {
	// Op is the operation that failed (e.g. "runLocal", "renderPages").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("extract: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *ExtractError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractError wraps an error as an ExtractError if it isn't already one.
func WrapExtractError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var exErr *ExtractError
	if errors.As(err, &exErr) {
		return err
	}

	return &ExtractError{Op: op, Err: err, Details: details}
}
