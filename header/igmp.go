package header

import (
	"encoding/binary"
	"net"
)

// IGMP message types as per RFC 1112 and RFC 2236. The version 1 report
// carries the protocol version in the high nibble of the type octet.
const (
	IGMPTypeMembershipQuery = 0x11
	IGMPTypeReportV1        = 0x12
	IGMPTypeReportV2        = 0x16
	IGMPTypeLeaveGroup      = 0x17
)

// IGMPHeader is a complete IGMP v1/v2 message: two 32-bit words. The second
// word carries the multicast group address the report refers to.
type IGMPHeader struct {
	Type uint8 // 0:1
	// Maximum response time in 0.1s units. Meaningful only in membership
	// queries; fixed to zero in every message this core produces.
	MaxRespTime  uint8   // 1:2
	Checksum     uint16  // 2:4
	GroupAddress [4]byte // 4:8
}

// DecodeIGMPHeader decodes an IGMP message from the first 8 bytes of buf.
func DecodeIGMPHeader(buf []byte) (ihdr IGMPHeader) {
	_ = buf[7]
	ihdr.Type = buf[0]
	ihdr.MaxRespTime = buf[1]
	ihdr.Checksum = binary.BigEndian.Uint16(buf[2:4])
	copy(ihdr.GroupAddress[:], buf[4:8])
	return ihdr
}

// Put marshals the IGMP message onto buf. buf needs to be 8 bytes in length
// or Put panics.
func (ihdr *IGMPHeader) Put(buf []byte) {
	_ = buf[7]
	buf[0] = ihdr.Type
	buf[1] = ihdr.MaxRespTime
	binary.BigEndian.PutUint16(buf[2:4], ihdr.Checksum)
	copy(buf[4:8], ihdr.GroupAddress[:])
}

// CalculateChecksum calculates the checksum over the whole message with the
// checksum field taken as zero. A receiver summing the transmitted bytes,
// checksum included, obtains zero for an intact message.
func (ihdr *IGMPHeader) CalculateChecksum() uint16 {
	var crc CRC791
	crc.AddUint16(uint16(ihdr.Type)<<8 | uint16(ihdr.MaxRespTime))
	crc.Write(ihdr.GroupAddress[:])
	return crc.Sum16()
}

// String returns a human readable representation of the IGMP message.
func (ihdr *IGMPHeader) String() string {
	var typestr string
	switch ihdr.Type {
	case IGMPTypeMembershipQuery:
		typestr = "query"
	case IGMPTypeReportV1:
		typestr = "report(v1)"
	case IGMPTypeReportV2:
		typestr = "report(v2)"
	case IGMPTypeLeaveGroup:
		typestr = "leave"
	default:
		typestr = "unknown"
	}
	return strcat("IGMP ", typestr, " group=", net.IP(ihdr.GroupAddress[:]).String())
}
