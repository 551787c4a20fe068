package protocol

import (
	"errors"
	"fmt"
)

// CommandMismatchError reports a payload whose command byte does not match
// the command the caller expected. The caller discards the frame; the frame
// itself was structurally sound.
type CommandMismatchError struct {
	// Want is the expected command
	Want Command

	// Got is the command byte actually present (response flag included)
	Got byte
}

func (e *CommandMismatchError) Error() string {
	return fmt.Sprintf("command mismatch: expected %s (0x%02X), got 0x%02X",
		e.Want, byte(e.Want), e.Got)
}

// TruncatedError reports a payload shorter than the fixed size its command
// requires. No field is extracted from a truncated payload.
type TruncatedError struct {
	Command Command

	// Need is the minimum payload length for this command
	Need int

	// Got is the actual payload length
	Got int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated %s payload: got %d bytes, need %d",
		e.Command, e.Got, e.Need)
}

// UnknownCommandError reports a frame whose command byte is outside the
// closed command enumeration.
type UnknownCommandError struct {
	Got byte
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command 0x%02X", e.Got)
}

// IsCommandMismatch returns true if the error is a *CommandMismatchError.
func IsCommandMismatch(err error) bool {
	var e *CommandMismatchError
	return errors.As(err, &e)
}

// IsTruncated returns true if the error is a *TruncatedError.
func IsTruncated(err error) bool {
	var e *TruncatedError
	return errors.As(err, &e)
}
