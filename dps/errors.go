package dps

import (
	"errors"
	"fmt"

	"github.com/opendps/godps/protocol"
)

// CommandFailedError indicates the device answered a command with
// success=0, for example a voltage outside what it can provide.
type CommandFailedError struct {
	Command protocol.Command
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("%s failed according to device", e.Command)
}

// UpgradeError indicates the bootloader terminated the upgrade session
// with an error status. Reason is only meaningful for failures reported on
// the upgrade_start handshake.
type UpgradeError struct {
	Status protocol.UpgradeStatus
	Reason protocol.UpgradeReason
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("device reported %s during upgrade", e.Status)
}

// IsCommandFailed returns true if the error is a *CommandFailedError.
func IsCommandFailed(err error) bool {
	var e *CommandFailedError
	return errors.As(err, &e)
}

// IsUpgradeError returns true if the error is an *UpgradeError.
func IsUpgradeError(err error) bool {
	var e *UpgradeError
	return errors.As(err, &e)
}
