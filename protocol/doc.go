// Package protocol implements the OpenDPS serial command protocol.
//
// Every user-facing action on the device (set voltage, set current limit,
// enable output, lock controls, query status) and every device-originated
// event (over-current protection, wifi status, firmware upgrade progress)
// is a single bounded-length frame:
//
//	byte 0:      command (bit 7 set means response)
//	bytes 1..N:  payload, big-endian multi-byte fields
//
// The device answers [cmd | ResponseFlag] [success] [response data...].
// Framing, escaping and the frame CRC are handled by package uframe; this
// package builds and parses the pre-escape command payloads.
//
// # Command builders
//
// Use the Create* functions to build complete, transmittable frames:
//
//	frame, err := protocol.CreateVOut(3300)
//	frame, err := protocol.CreateUpgradeStart(1024, crc)
//
// # Payload parsers
//
// Use ParseFrame on a deframed payload to identify it, then the matching
// Unpack* function to extract the fields:
//
//	cmd, isResponse, payload, err := protocol.ParseFrame(raw)
//	st, err := protocol.UnpackStatusResponse(payload)
//
// Unpack* functions verify the command byte and the minimum payload length
// and never read out of bounds. A mismatched command byte yields
// *CommandMismatchError, a short payload *TruncatedError. Extra trailing
// bytes on fixed-shape commands are tolerated; for upgrade data frames the
// remainder is the payload.
package protocol
