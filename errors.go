package certvault

import (
	"errors"
	"fmt"
)

// ErrPasswordRequired reports that an encrypted container could not be opened
// because the passphrase was missing or wrong. Callers are expected to
// re-prompt rather than treat this as a structural failure.
var ErrPasswordRequired = errors.New("password required or incorrect")

// FormatError reports input that is structurally invalid for its detected
// container format. It is not retryable without different input.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s input: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// newFormatError wraps err as a FormatError for the given format.
func newFormatError(format Format, err error) error {
	return &FormatError{Format: format, Err: err}
}
