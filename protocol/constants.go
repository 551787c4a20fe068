package protocol

import (
	"fmt"

	"github.com/opendps/godps/uframe"
)

// Command identifies a protocol command. The identifier space is a fixed,
// closed enumeration: unrecognized identifiers are a decode error, never
// silently ignored.
type Command byte

const (
	// CmdPing checks whether the device is online
	CmdPing Command = iota + 1

	// CmdSetVOut sets the output voltage in millivolts
	CmdSetVOut

	// CmdSetILimit sets the maximum output current in milliamperes
	CmdSetILimit

	// CmdStatus reads input/output voltages, currents and power state
	CmdStatus

	// CmdPowerEnable enables or disables the power output
	CmdPowerEnable

	// CmdWifiStatus sets the wifi indicator on the device screen
	CmdWifiStatus

	// CmdLock locks or unlocks the front panel controls
	CmdLock

	// CmdOCPEvent is sent by the device when over-current protection trips.
	// The device expects no response.
	CmdOCPEvent

	// CmdUpgradeStart begins a firmware upgrade session
	CmdUpgradeStart

	// CmdUpgradeData carries one chunk of the firmware image
	CmdUpgradeData
)

// ResponseFlag is OR'd into the command byte of a response frame. Commands
// and their responses share the identifier; the flag is a separate bit, not
// a new identifier space.
const ResponseFlag = 0x80

// Valid reports whether c is a known command identifier.
func (c Command) Valid() bool {
	return c >= CmdPing && c <= CmdUpgradeData
}

func (c Command) String() string {
	switch c {
	case CmdPing:
		return "ping"
	case CmdSetVOut:
		return "set_vout"
	case CmdSetILimit:
		return "set_ilimit"
	case CmdStatus:
		return "status"
	case CmdPowerEnable:
		return "power_enable"
	case CmdWifiStatus:
		return "wifi_status"
	case CmdLock:
		return "lock"
	case CmdOCPEvent:
		return "ocp_event"
	case CmdUpgradeStart:
		return "upgrade_start"
	case CmdUpgradeData:
		return "upgrade_data"
	default:
		return fmt.Sprintf("unknown command 0x%02X", byte(c))
	}
}

// WifiStatus is the wifi indicator state. The ordinals are wire-stable:
// reordering them breaks compatibility with deployed devices.
type WifiStatus byte

const (
	WifiOff WifiStatus = iota
	WifiConnecting
	WifiConnected
	WifiError

	// WifiUpgrading is used by the wifi module while doing FOTA
	WifiUpgrading
)

func (s WifiStatus) String() string {
	switch s {
	case WifiOff:
		return "off"
	case WifiConnecting:
		return "connecting"
	case WifiConnected:
		return "connected"
	case WifiError:
		return "error"
	case WifiUpgrading:
		return "upgrading"
	default:
		return fmt.Sprintf("unknown wifi status 0x%02X", byte(s))
	}
}

// UpgradeStatus is the per-step outcome reported by the bootloader during
// an upgrade session. UpgradeSuccess sits at 16, numerically disjoint from
// the contiguous error block, leaving room for future error codes.
type UpgradeStatus byte

const (
	// UpgradeContinue is the go-ahead for the next chunk
	UpgradeContinue UpgradeStatus = iota

	// UpgradeBootcomError means the boot-reason store was missing or corrupt
	UpgradeBootcomError

	// UpgradeCRCError means the full-image CRC check failed
	UpgradeCRCError

	// UpgradeEraseError means flash erase failed
	UpgradeEraseError

	// UpgradeFlashError means a flash write failed
	UpgradeFlashError

	// UpgradeOverflowError means the image would overflow available flash
	UpgradeOverflowError

	// UpgradeProtocolError means upgrade data arrived without a session,
	// or a non-upgrade command arrived mid-transfer
	UpgradeProtocolError

	// UpgradeSuccess means the image was received and verified
	UpgradeSuccess UpgradeStatus = 16
)

func (s UpgradeStatus) String() string {
	switch s {
	case UpgradeContinue:
		return "continue"
	case UpgradeBootcomError:
		return "bootcom error"
	case UpgradeCRCError:
		return "crc error"
	case UpgradeEraseError:
		return "erase error"
	case UpgradeFlashError:
		return "flash error"
	case UpgradeOverflowError:
		return "overflow error"
	case UpgradeProtocolError:
		return "protocol error"
	case UpgradeSuccess:
		return "success"
	default:
		return fmt.Sprintf("unknown upgrade status 0x%02X", byte(s))
	}
}

// UpgradeReason is reported once per upgrade session by the bootloader,
// explaining why the device is in bootloader mode.
type UpgradeReason byte

const (
	ReasonUnknown UpgradeReason = iota

	// ReasonForced: user forced bootloader mode via button
	ReasonForced

	// ReasonPastFailure: persistent-storage init failed
	ReasonPastFailure

	// ReasonBootcom: the application requested an upgrade via bootcom
	ReasonBootcom

	// ReasonUnfinishedUpgrade: a previous upgrade never completed
	ReasonUnfinishedUpgrade

	// ReasonAppStartFailed: the application returned to the bootloader
	ReasonAppStartFailed
)

func (r UpgradeReason) String() string {
	switch r {
	case ReasonUnknown:
		return "unknown"
	case ReasonForced:
		return "forced by user"
	case ReasonPastFailure:
		return "past failure"
	case ReasonBootcom:
		return "bootcom request"
	case ReasonUnfinishedUpgrade:
		return "unfinished upgrade"
	case ReasonAppStartFailed:
		return "app start failed"
	default:
		return fmt.Sprintf("unknown upgrade reason 0x%02X", byte(r))
	}
}

// MaxFrameLength is the maximum escaped length of a regular command frame.
// See uframe.MaxFrameLength for the derivation.
const MaxFrameLength = uframe.MaxFrameLength

// MaxChunkSize is the largest upgrade data chunk the bootloader accepts.
// A host may request less; requests above this are capped in the
// upgrade_start response.
const MaxChunkSize = 1024

// MaxUpgradeFrameLength bounds an escaped upgrade data frame:
// command byte + MaxChunkSize payload + CRC16, worst-case escaped, plus
// delimiters.
const MaxUpgradeFrameLength = 2*(1+MaxChunkSize+2) + 2
