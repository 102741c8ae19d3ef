/*
package header implements marshalling, unmarshalling and validation of the
wire formats produced by the transport core: the TCP control segment header
and the IGMP membership report, along with the RFC 791 ones' complement
checksum they share. All multi-byte fields are big-endian on the wire
regardless of host byte order.
*/
package header

import (
	"encoding/binary"
	"strconv"

	"github.com/soypat/seqs"
)

// Minimum header sizes. None of these account for options.
const (
	SizeTCPHeader  = 20
	SizeIPv4Header = 20
	SizeIGMPHeader = 8
)

// IP protocol numbers for the transports composed by this core.
const (
	IPProtoIGMP = 2
	IPProtoTCP  = 6
	IPProtoUDP  = 17
)

const (
	// TCP words are 4 octets.
	tcpWordlen         = 4
	tcpFlagmask uint16 = 0x01ff
)

// TCPHeader are the first 20 bytes of a TCP header. Does not include options.
type TCPHeader struct {
	SourcePort      uint16 // 0:2
	DestinationPort uint16 // 2:4
	// The sequence number of the first data octet in this segment (except
	// when SYN present). If SYN is present this is the Initial Sequence
	// Number (ISN) and the first data octet would be ISN+1.
	Seq seqs.Value // 4:8
	// Value of the next sequence number the sender is expecting to receive
	// (when ACK is present).
	Ack seqs.Value // 8:12
	// Contains the 4 bit TCP offset (in 32bit words), the 6 bit TCP flags
	// field and a 6 bit reserved field.
	OffsetAndFlags uint16 // 12:14 bitfield
	WindowSizeRaw  uint16 // 14:16
	Checksum       uint16 // 16:18
	UrgentPtr      uint16 // 18:20
}

// DecodeTCPHeader decodes a TCP header from the first 20 bytes of buf.
func DecodeTCPHeader(buf []byte) (tcphdr TCPHeader) {
	_ = buf[19]
	tcphdr.SourcePort = binary.BigEndian.Uint16(buf[0:])
	tcphdr.DestinationPort = binary.BigEndian.Uint16(buf[2:])
	tcphdr.Seq = seqs.Value(binary.BigEndian.Uint32(buf[4:]))
	tcphdr.Ack = seqs.Value(binary.BigEndian.Uint32(buf[8:]))
	tcphdr.OffsetAndFlags = binary.BigEndian.Uint16(buf[12:])
	tcphdr.WindowSizeRaw = binary.BigEndian.Uint16(buf[14:])
	tcphdr.Checksum = binary.BigEndian.Uint16(buf[16:])
	tcphdr.UrgentPtr = binary.BigEndian.Uint16(buf[18:])
	return tcphdr
}

// Put marshals the TCP header onto buf. buf needs to be 20 bytes in length or
// Put panics.
func (tcphdr *TCPHeader) Put(buf []byte) {
	_ = buf[19]
	binary.BigEndian.PutUint16(buf[0:], tcphdr.SourcePort)
	binary.BigEndian.PutUint16(buf[2:], tcphdr.DestinationPort)
	binary.BigEndian.PutUint32(buf[4:], uint32(tcphdr.Seq))
	binary.BigEndian.PutUint32(buf[8:], uint32(tcphdr.Ack))
	binary.BigEndian.PutUint16(buf[12:], tcphdr.OffsetAndFlags)
	binary.BigEndian.PutUint16(buf[14:], tcphdr.WindowSizeRaw)
	binary.BigEndian.PutUint16(buf[16:], tcphdr.Checksum)
	binary.BigEndian.PutUint16(buf[18:], tcphdr.UrgentPtr)
}

// Offset specifies the size of the TCP header in 32-bit words. The minimum
// size header is 5 words and the maximum is 15 words, allowing for up to 40
// bytes of options.
func (tcphdr *TCPHeader) Offset() (tcpWords uint8) {
	return uint8(tcphdr.OffsetAndFlags >> (8 + 4))
}

// OffsetInBytes returns the size of the TCP header in bytes, including
// options. See [TCPHeader.Offset] for more information.
func (tcphdr *TCPHeader) OffsetInBytes() uint8 {
	return tcphdr.Offset() * tcpWordlen
}

// SetOffset sets the TCP header size in 32-bit words, leaving flags untouched.
func (tcphdr *TCPHeader) SetOffset(tcpWords uint8) {
	if tcpWords > 0b1111 {
		panic("attempted to set an offset too large")
	}
	onlyFlags := tcphdr.OffsetAndFlags & tcpFlagmask
	tcphdr.OffsetAndFlags = onlyFlags | (uint16(tcpWords) << 12)
}

// Flags returns the TCP flags contained in the header.
func (tcphdr *TCPHeader) Flags() seqs.Flags {
	return seqs.Flags(tcphdr.OffsetAndFlags & tcpFlagmask)
}

// SetFlags sets the TCP flags, leaving the offset untouched.
func (tcphdr *TCPHeader) SetFlags(v seqs.Flags) {
	onlyOffset := tcphdr.OffsetAndFlags &^ tcpFlagmask
	tcphdr.OffsetAndFlags = onlyOffset | uint16(v)&tcpFlagmask
}

// WindowSize is a convenience method for obtaining a seqs.Size from the
// header's raw 16-bit window field.
func (tcphdr *TCPHeader) WindowSize() seqs.Size {
	return seqs.Size(tcphdr.WindowSizeRaw)
}

// CalculateChecksumIPv4 calculates the checksum of the TCP header, options
// and payload over an IPv4 pseudo-header:
//
//	+--------+--------+--------+--------+
//	|           Source Address          |
//	+--------+--------+--------+--------+
//	|         Destination Address       |
//	+--------+--------+--------+--------+
//	|  zero  |  PTCL  |    TCP Length   |
//	+--------+--------+--------+--------+
//
// The TCP Length is the TCP header length plus the data length in octets and
// does not count the 12 octets of the pseudo-header itself.
func (tcphdr *TCPHeader) CalculateChecksumIPv4(src, dst [4]byte, tcpOptions, payload []byte) uint16 {
	var crc CRC791
	crc.Write(src[:])
	crc.Write(dst[:])
	crc.AddUint16(IPProtoTCP) // High byte is the zero pad.
	crc.AddUint16(SizeTCPHeader + uint16(len(tcpOptions)) + uint16(len(payload)))
	var buf [SizeTCPHeader]byte
	tcphdr.Put(buf[:])
	binary.BigEndian.PutUint16(buf[16:18], 0) // Zero out checksum field.
	crc.Write(buf[:])
	crc.Write(tcpOptions)
	crc.Write(payload)
	return crc.Sum16()
}

// String returns a human readable representation of the TCP header.
func (tcphdr *TCPHeader) String() string {
	return strcat("TCP port ", u32toa(uint32(tcphdr.SourcePort)), "->", u32toa(uint32(tcphdr.DestinationPort)),
		" [", tcphdr.Flags().String(), "] ", "seq ", u32toa(uint32(tcphdr.Seq)), " ack ", u32toa(uint32(tcphdr.Ack)))
}

func u32toa(u uint32) string {
	return strconv.FormatUint(uint64(u), 10)
}

func strcat(strs ...string) (s string) {
	for i := range strs {
		s += strs[i]
	}
	return s
}
