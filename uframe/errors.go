package uframe

import "errors"

// ErrFrameTooLarge is returned by Frame when the escaped result would not
// fit within the requested maximum. No partial frame is produced.
var ErrFrameTooLarge = errors.New("escaped frame exceeds maximum frame length")

// FramingError reports a malformed, unterminated or corrupted frame on the
// wire. It is stream-level and recoverable: the caller resynchronizes on
// the next SOF.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "framing error: " + e.Reason
}

// IsFramingError returns true if the error is a *FramingError.
func IsFramingError(err error) bool {
	var fe *FramingError
	return errors.As(err, &fe)
}
