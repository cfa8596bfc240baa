// Package checksum implements the CRC-32 and Adler-32 checksums used by the
// PNG container and its zlib stream, plus a Region helper that finalizes a
// checksum over bytes appended to an output buffer after a marked offset.
package checksum

// crcPolynomial is the reflected IEEE 802.3 polynomial used by PNG and zlib.
const crcPolynomial = 0xEDB88320

// crcTable holds the CRC of every possible byte value, computed once.
var crcTable [256]uint32

func init() {
	for n := 0; n < 256; n++ {
		c := uint32(n)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = crcPolynomial ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		crcTable[n] = c
	}
}

// UpdateCRC32 continues a running CRC-32 with the bytes of b. The running
// value is the finalized CRC of everything seen so far, so UpdateCRC32(0, b)
// equals CRC32(b) and calls can be chained.
func UpdateCRC32(crc uint32, b []byte) uint32 {
	c := ^crc
	for _, v := range b {
		c = crcTable[byte(c)^v] ^ (c >> 8)
	}
	return ^c
}

// CRC32 returns the PNG/zlib CRC-32 of b (init 0xFFFFFFFF, final XOR 0xFFFFFFFF).
func CRC32(b []byte) uint32 {
	return UpdateCRC32(0, b)
}
