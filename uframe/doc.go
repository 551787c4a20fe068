// Package uframe implements the byte-level framing used on the OpenDPS
// serial link. It turns an arbitrary payload into a self-delimiting wire
// frame and back, with no knowledge of what the payload means.
//
// # Wire format
//
// A frame is the payload followed by a 16-bit CRC, escaped and wrapped in
// delimiters:
//
//	[SOF][escaped(payload + CRC16_H + CRC16_L)][EOF]
//
// Where:
//   - SOF = Start of Frame (0x7E)
//   - EOF = End of Frame (0x7F)
//   - DLE = Data Link Escape (0x7D)
//
// Any payload or CRC byte equal to one of the three control bytes is sent
// as DLE followed by the byte XORed with 0x20. The CRC is CRC-16-CCITT
// (poly 0x1021, init 0xFFFF) over the unescaped payload, big-endian on the
// wire.
//
// These byte values and MaxFrameLength are a compatibility contract with
// the device on the other end of the link. Changing them is a hard
// protocol break.
//
// # Usage
//
//	frame, err := uframe.Frame(payload, uframe.MaxFrameLength)
//	// transmit frame ...
//
//	r := uframe.NewReader(port)
//	payload, err := r.ReadFrame()
package uframe
