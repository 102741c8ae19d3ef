package header

import (
	"encoding/binary"
)

// CRC791 computes the checksum defined by RFC 791 and shared by the internet
// protocol family: the 16-bit ones' complement of the ones' complement sum of
// all 16-bit words covered. An odd trailing octet is treated as the high byte
// of a zero-padded word.
//
// The zero value of CRC791 is ready to use.
type CRC791 struct {
	sum uint32
	// odd holds a pending high byte when data has been written up to an odd
	// offset; the next written byte completes the word.
	odd   uint8
	isOdd bool
}

// Write adds the bytes in buff to the running checksum.
func (c *CRC791) Write(buff []byte) (n int, err error) {
	n = len(buff)
	if n == 0 {
		return 0, nil
	}
	if c.isOdd {
		c.sum += uint32(c.odd)<<8 | uint32(buff[0])
		c.isOdd = false
		buff = buff[1:]
	}
	for len(buff) >= 2 {
		c.sum += uint32(binary.BigEndian.Uint16(buff))
		buff = buff[2:]
	}
	if len(buff) == 1 {
		c.odd = buff[0]
		c.isOdd = true
	}
	return n, nil
}

// AddUint16 adds a 16-bit word to the running checksum. Must not be called
// at an odd write offset.
func (c *CRC791) AddUint16(v uint16) {
	if c.isOdd {
		panic("crc791: AddUint16 at odd offset")
	}
	c.sum += uint32(v)
}

// AddUint32 adds a 32-bit word to the running checksum as two 16-bit words.
func (c *CRC791) AddUint32(v uint32) {
	c.AddUint16(uint16(v >> 16))
	c.AddUint16(uint16(v))
}

// Sum16 returns the checksum of the data written so far. The carry is folded
// back into the low 16 bits twice: the first fold can itself produce a carry,
// the second cannot.
func (c *CRC791) Sum16() uint16 {
	sum := c.sum
	if c.isOdd {
		sum += uint32(c.odd) << 8
	}
	sum = (sum >> 16) + (sum & 0xffff)
	sum = (sum >> 16) + (sum & 0xffff)
	return uint16(^sum)
}

// Reset zeros the accumulator, restoring the initial state.
func (c *CRC791) Reset() { *c = CRC791{} }
