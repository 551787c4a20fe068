package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseFrame identifies a deframed payload: the command, whether the frame
// is a response, and the payload itself (command byte included) ready for
// the matching Unpack* function.
//
// A command byte outside the closed enumeration is an *UnknownCommandError;
// it is never silently ignored.
func ParseFrame(raw []byte) (cmd Command, isResponse bool, payload []byte, err error) {
	if len(raw) == 0 {
		return 0, false, nil, &TruncatedError{Need: 1, Got: 0}
	}
	b := raw[0]
	isResponse = b&ResponseFlag != 0
	cmd = Command(b &^ ResponseFlag)
	if !cmd.Valid() {
		return 0, false, nil, &UnknownCommandError{Got: b}
	}
	return cmd, isResponse, raw, nil
}

// checkPayload verifies the command byte and minimum length of a payload.
// Trailing bytes beyond the fixed size are tolerated.
func checkPayload(payload []byte, cmd Command, response bool, need int) error {
	if len(payload) < 1 {
		return &TruncatedError{Command: cmd, Need: need, Got: len(payload)}
	}
	want := byte(cmd)
	if response {
		want |= ResponseFlag
	}
	if payload[0] != want {
		return &CommandMismatchError{Want: cmd, Got: payload[0]}
	}
	if len(payload) < need {
		return &TruncatedError{Command: cmd, Need: need, Got: len(payload)}
	}
	return nil
}

// UnpackResponse extracts the command and success indicator from a generic
// response payload.
func UnpackResponse(payload []byte) (Command, bool, error) {
	if len(payload) < 2 {
		return 0, false, &TruncatedError{Need: 2, Got: len(payload)}
	}
	b := payload[0]
	if b&ResponseFlag == 0 {
		return 0, false, &CommandMismatchError{Want: Command(b), Got: b}
	}
	cmd := Command(b &^ ResponseFlag)
	if !cmd.Valid() {
		return 0, false, &UnknownCommandError{Got: b}
	}
	return cmd, payload[1] != 0, nil
}

// UnpackVOut extracts the requested output voltage in millivolts from a
// set_vout payload.
func UnpackVOut(payload []byte) (uint16, error) {
	if err := checkPayload(payload, CmdSetVOut, false, 3); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(payload[1:3]), nil
}

// UnpackILimit extracts the requested current limit in milliamperes from a
// set_ilimit payload.
func UnpackILimit(payload []byte) (uint16, error) {
	if err := checkPayload(payload, CmdSetILimit, false, 3); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(payload[1:3]), nil
}

// UnpackPowerEnable extracts the enable flag from a power_enable payload.
func UnpackPowerEnable(payload []byte) (bool, error) {
	if err := checkPayload(payload, CmdPowerEnable, false, 2); err != nil {
		return false, err
	}
	return payload[1] != 0, nil
}

// UnpackWifiStatus extracts the wifi indicator state from a wifi_status
// payload. The enumeration is closed: out-of-range values are an error.
func UnpackWifiStatus(payload []byte) (WifiStatus, error) {
	if err := checkPayload(payload, CmdWifiStatus, false, 2); err != nil {
		return 0, err
	}
	st := WifiStatus(payload[1])
	if st > WifiUpgrading {
		return 0, fmt.Errorf("invalid wifi status 0x%02X", payload[1])
	}
	return st, nil
}

// UnpackLock extracts the lock flag from a lock payload.
func UnpackLock(payload []byte) (bool, error) {
	if err := checkPayload(payload, CmdLock, false, 2); err != nil {
		return false, err
	}
	return payload[1] != 0, nil
}

// UnpackOCP extracts the cutoff current in milliamperes from a
// device-initiated ocp_event payload.
func UnpackOCP(payload []byte) (uint16, error) {
	if err := checkPayload(payload, CmdOCPEvent, false, 3); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(payload[1:3]), nil
}

// UnpackStatusResponse extracts the measurement tuple from a status
// response payload. A failed decode or a response reporting failure yields
// no result, never a zero-filled one.
func UnpackStatusResponse(payload []byte) (*Status, error) {
	if err := checkPayload(payload, CmdStatus, true, 13); err != nil {
		return nil, err
	}
	if payload[1] == 0 {
		return nil, fmt.Errorf("status response reports failure")
	}
	return &Status{
		VIn:          binary.BigEndian.Uint16(payload[2:4]),
		VOutSetting:  binary.BigEndian.Uint16(payload[4:6]),
		VOut:         binary.BigEndian.Uint16(payload[6:8]),
		IOut:         binary.BigEndian.Uint16(payload[8:10]),
		ILimit:       binary.BigEndian.Uint16(payload[10:12]),
		PowerEnabled: payload[12] != 0,
	}, nil
}

// UnpackUpgradeStart extracts the requested chunk size and image CRC from
// an upgrade_start payload.
func UnpackUpgradeStart(payload []byte) (chunkSize, crc uint16, err error) {
	if err := checkPayload(payload, CmdUpgradeStart, false, 5); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint16(payload[1:3]), binary.BigEndian.Uint16(payload[3:5]), nil
}

// UnpackUpgradeData extracts the chunk bytes from an upgrade_data payload.
// The remainder after the command byte is the payload; an empty remainder
// is a valid end-of-image terminator.
func UnpackUpgradeData(payload []byte) ([]byte, error) {
	if err := checkPayload(payload, CmdUpgradeData, false, 1); err != nil {
		return nil, err
	}
	return payload[1:], nil
}

// UnpackUpgradeStartResponse extracts the bootloader's session
// acknowledgement from an upgrade_start response payload.
func UnpackUpgradeStartResponse(payload []byte) (*UpgradeAck, error) {
	if err := checkPayload(payload, CmdUpgradeStart, true, 5); err != nil {
		return nil, err
	}
	return &UpgradeAck{
		Status:    UpgradeStatus(payload[1]),
		ChunkSize: binary.BigEndian.Uint16(payload[2:4]),
		Reason:    UpgradeReason(payload[4]),
	}, nil
}

// UnpackUpgradeDataResponse extracts the per-chunk status from an
// upgrade_data response payload.
func UnpackUpgradeDataResponse(payload []byte) (UpgradeStatus, error) {
	if err := checkPayload(payload, CmdUpgradeData, true, 2); err != nil {
		return 0, err
	}
	return UpgradeStatus(payload[1]), nil
}
