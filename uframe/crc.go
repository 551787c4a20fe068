package uframe

// CRC-16-CCITT parameters. The same algorithm covers both frame integrity
// and the firmware image CRC in the upgrade handshake.
const (
	crc16Polynomial = 0x1021
	crc16Initial    = 0xFFFF
	crc16HighBit    = 0x8000
)

// CRC16 computes the CRC-16-CCITT checksum of data
// (poly 0x1021, init 0xFFFF, no reflection, no final XOR).
func CRC16(data []byte) uint16 {
	return CRC16Update(crc16Initial, data)
}

// CRC16Update continues a CRC-16-CCITT computation over data, starting from
// crc. Feed CRC16Init as the first value when accumulating incrementally.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&crc16HighBit != 0 {
				crc = (crc << 1) ^ crc16Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC16Init is the initial value for incremental CRC16Update runs.
const CRC16Init = crc16Initial
