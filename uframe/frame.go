package uframe

import (
	"encoding/binary"
	"fmt"
)

// Framing control bytes. Reserved: none of them may appear literally
// between SOF and EOF.
const (
	// SOF marks the start of a frame (0x7E)
	SOF = 0x7E

	// DLE escapes a control byte inside a frame (0x7D)
	DLE = 0x7D

	// EOF marks the end of a frame (0x7F)
	EOF = 0x7F

	// XORMask is applied to an escaped byte following DLE (0x20)
	XORMask = 0x20
)

// MaxFrameLength is the maximum escaped frame length in bytes for regular
// commands. It is sized for the largest fixed-format frame, the status
// response: 13 payload bytes + 2 CRC bytes, every one escaping to two wire
// bytes, plus SOF and EOF.
const MaxFrameLength = 32

// MinFrameLength is the smallest possible frame:
// SOF(1) + CMD(1) + CRC(2) + EOF(1).
const MinFrameLength = 5

// Frame wraps payload into a complete wire frame: the payload and its CRC16
// are escaped and enclosed in SOF/EOF delimiters.
//
// If the escaped result would exceed max bytes, Frame returns
// ErrFrameTooLarge and no frame is produced. A truncated frame is never
// emitted.
func Frame(payload []byte, max int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, &FramingError{Reason: "empty payload"}
	}

	crc := CRC16(payload)

	frame := make([]byte, 0, 2*(len(payload)+2)+2)
	frame = append(frame, SOF)
	frame = appendEscaped(frame, payload)
	frame = appendEscaped(frame, []byte{byte(crc >> 8), byte(crc)})
	frame = append(frame, EOF)

	if len(frame) > max {
		return nil, ErrFrameTooLarge
	}
	return frame, nil
}

// appendEscaped appends p to dst, replacing control bytes with their
// DLE-escaped form.
func appendEscaped(dst, p []byte) []byte {
	for _, b := range p {
		switch b {
		case SOF, DLE, EOF:
			dst = append(dst, DLE, b^XORMask)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// Unframe reverses Frame: it consumes exactly one delimited frame, undoes
// the escape transform, verifies the CRC and returns the raw payload.
//
// Structural problems (missing delimiters, a dangling escape, a CRC
// mismatch) are reported as *FramingError.
func Unframe(frame []byte) ([]byte, error) {
	if len(frame) < MinFrameLength {
		return nil, &FramingError{Reason: fmt.Sprintf("frame too short: %d bytes", len(frame))}
	}
	if frame[0] != SOF {
		return nil, &FramingError{Reason: fmt.Sprintf("expected SOF, got 0x%02X", frame[0])}
	}
	if frame[len(frame)-1] != EOF {
		return nil, &FramingError{Reason: fmt.Sprintf("expected EOF, got 0x%02X", frame[len(frame)-1])}
	}

	raw := make([]byte, 0, len(frame)-2)
	for i := 1; i < len(frame)-1; i++ {
		switch b := frame[i]; b {
		case SOF, EOF:
			return nil, &FramingError{Reason: fmt.Sprintf("unescaped control byte 0x%02X inside frame", b)}
		case DLE:
			i++
			if i == len(frame)-1 {
				return nil, &FramingError{Reason: "dangling escape at end of frame"}
			}
			raw = append(raw, frame[i]^XORMask)
		default:
			raw = append(raw, b)
		}
	}

	if len(raw) < 3 {
		return nil, &FramingError{Reason: "frame payload too short for CRC"}
	}

	want := binary.BigEndian.Uint16(raw[len(raw)-2:])
	payload := raw[:len(raw)-2]
	if got := CRC16(payload); got != want {
		return nil, &FramingError{Reason: fmt.Sprintf("CRC mismatch: got 0x%04X, expected 0x%04X", got, want)}
	}
	return payload, nil
}
