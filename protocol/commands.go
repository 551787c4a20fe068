package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/opendps/godps/uframe"
)

// CreatePing constructs a ping command frame.
//
//	HOST: [cmd_ping]
func CreatePing() ([]byte, error) {
	return uframe.Frame([]byte{byte(CmdPing)}, MaxFrameLength)
}

// CreateVOut constructs a set-voltage command frame. The voltage is in
// millivolts.
//
//	HOST: [cmd_set_vout] [vout_mv(15:8)] [vout_mv(7:0)]
func CreateVOut(voutMV uint16) ([]byte, error) {
	raw := make([]byte, 0, 3)
	raw = append(raw, byte(CmdSetVOut))
	raw = binary.BigEndian.AppendUint16(raw, voutMV)
	return uframe.Frame(raw, MaxFrameLength)
}

// CreateILimit constructs a set-current-limit command frame. The current is
// in milliamperes.
//
//	HOST: [cmd_set_ilimit] [ilimit_ma(15:8)] [ilimit_ma(7:0)]
func CreateILimit(ilimitMA uint16) ([]byte, error) {
	raw := make([]byte, 0, 3)
	raw = append(raw, byte(CmdSetILimit))
	raw = binary.BigEndian.AppendUint16(raw, ilimitMA)
	return uframe.Frame(raw, MaxFrameLength)
}

// CreateStatus constructs a status query frame.
//
//	HOST: [cmd_status]
func CreateStatus() ([]byte, error) {
	return uframe.Frame([]byte{byte(CmdStatus)}, MaxFrameLength)
}

// CreatePowerEnable constructs a power enable/disable command frame.
//
//	HOST: [cmd_power_enable] [<enable>]
func CreatePowerEnable(enable bool) ([]byte, error) {
	return uframe.Frame([]byte{byte(CmdPowerEnable), boolByte(enable)}, MaxFrameLength)
}

// CreateWifiStatus constructs a wifi indicator command frame.
//
//	HOST: [cmd_wifi_status] [<wifi_status_t>]
func CreateWifiStatus(status WifiStatus) ([]byte, error) {
	if status > WifiUpgrading {
		return nil, fmt.Errorf("invalid wifi status 0x%02X", byte(status))
	}
	return uframe.Frame([]byte{byte(CmdWifiStatus), byte(status)}, MaxFrameLength)
}

// CreateLock constructs a controls lock/unlock command frame.
//
//	HOST: [cmd_lock] [<lock>]
func CreateLock(locked bool) ([]byte, error) {
	return uframe.Frame([]byte{byte(CmdLock), boolByte(locked)}, MaxFrameLength)
}

// CreateOCP constructs an over-current protection event frame. Sent by the
// device with the current (in milliamperes) that tripped the protection;
// the device expects no response.
//
//	DPS: [cmd_ocp_event] [I_cut(15:8)] [I_cut(7:0)]
func CreateOCP(iCutMA uint16) ([]byte, error) {
	raw := make([]byte, 0, 3)
	raw = append(raw, byte(CmdOCPEvent))
	raw = binary.BigEndian.AppendUint16(raw, iCutMA)
	return uframe.Frame(raw, MaxFrameLength)
}

// CreateUpgradeStart constructs an upgrade session start frame. crc is the
// CRC16 of the complete firmware image.
//
//	HOST: [cmd_upgrade_start] [chunk_size:16] [crc:16]
func CreateUpgradeStart(chunkSize, crc uint16) ([]byte, error) {
	raw := make([]byte, 0, 5)
	raw = append(raw, byte(CmdUpgradeStart))
	raw = binary.BigEndian.AppendUint16(raw, chunkSize)
	raw = binary.BigEndian.AppendUint16(raw, crc)
	return uframe.Frame(raw, MaxFrameLength)
}

// CreateUpgradeData constructs an upgrade data frame carrying one chunk of
// the firmware image. Every chunk is the negotiated chunk size except
// permissibly the final one; a chunk shorter than the chunk size, including
// an empty one, ends the session.
//
//	HOST: [cmd_upgrade_data] [<payload>]*
func CreateUpgradeData(data []byte) ([]byte, error) {
	if len(data) > MaxChunkSize {
		return nil, fmt.Errorf("chunk length %d exceeds maximum %d bytes", len(data), MaxChunkSize)
	}
	raw := make([]byte, 0, 1+len(data))
	raw = append(raw, byte(CmdUpgradeData))
	raw = append(raw, data...)
	return uframe.Frame(raw, MaxUpgradeFrameLength)
}

// CreateResponse constructs the generic acknowledgement the device sends
// for simple commands.
//
//	DPS: [cmd_response | <cmd>] [<success>]
func CreateResponse(cmd Command, success bool) ([]byte, error) {
	if !cmd.Valid() {
		return nil, &UnknownCommandError{Got: byte(cmd)}
	}
	return uframe.Frame([]byte{byte(cmd) | ResponseFlag, boolByte(success)}, MaxFrameLength)
}

// CreateStatusResponse constructs the status response frame. This is the
// largest fixed-format frame in the protocol and the origin of
// MaxFrameLength.
//
//	DPS: [cmd_response | cmd_status] [1] [V_in:16] [V_out_setting:16]
//	     [V_out:16] [I_out:16] [I_limit:16] [<power enable>]
func CreateStatusResponse(st Status) ([]byte, error) {
	raw := make([]byte, 0, 13)
	raw = append(raw, byte(CmdStatus)|ResponseFlag, 1)
	raw = binary.BigEndian.AppendUint16(raw, st.VIn)
	raw = binary.BigEndian.AppendUint16(raw, st.VOutSetting)
	raw = binary.BigEndian.AppendUint16(raw, st.VOut)
	raw = binary.BigEndian.AppendUint16(raw, st.IOut)
	raw = binary.BigEndian.AppendUint16(raw, st.ILimit)
	raw = append(raw, boolByte(st.PowerEnabled))
	return uframe.Frame(raw, MaxFrameLength)
}

// CreateUpgradeStartResponse constructs the bootloader's answer to
// upgrade_start. chunkSize is the size the host must use from now on.
//
//	DPS (BL): [cmd_response | cmd_upgrade_start] [<upgrade_status_t>]
//	          [<chunk_size:16>] [<upgrade_reason_t>]
func CreateUpgradeStartResponse(status UpgradeStatus, chunkSize uint16, reason UpgradeReason) ([]byte, error) {
	raw := make([]byte, 0, 5)
	raw = append(raw, byte(CmdUpgradeStart)|ResponseFlag, byte(status))
	raw = binary.BigEndian.AppendUint16(raw, chunkSize)
	raw = append(raw, byte(reason))
	return uframe.Frame(raw, MaxFrameLength)
}

// CreateUpgradeDataResponse constructs the bootloader's per-chunk
// acknowledgement.
//
//	DPS (BL): [cmd_response | cmd_upgrade_data] [<upgrade_status_t>]
func CreateUpgradeDataResponse(status UpgradeStatus) ([]byte, error) {
	return uframe.Frame([]byte{byte(CmdUpgradeData) | ResponseFlag, byte(status)}, MaxFrameLength)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
