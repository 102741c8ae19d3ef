package header

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/netstack/tcpip"
	nsheader "github.com/google/netstack/tcpip/header"
	"github.com/soypat/seqs"
)

func tcpipAddr(a [4]byte) tcpip.Address { return tcpip.Address(a[:]) }

// Encoding is checked against the netstack reference encoder field by field
// and byte by byte.
func TestTCPHeaderPut_reference(t *testing.T) {
	for _, tt := range []struct {
		name string
		hdr  TCPHeader
	}{
		{
			name: "syn",
			hdr: TCPHeader{
				SourcePort:      49152,
				DestinationPort: 80,
				Seq:             0x1a2b3c4d,
				WindowSizeRaw:   4096,
			},
		},
		{
			name: "synack",
			hdr: TCPHeader{
				SourcePort:      80,
				DestinationPort: 49152,
				Seq:             0xfeed,
				Ack:             0x1a2b3c4e,
				WindowSizeRaw:   0xffff,
			},
		},
		{
			name: "urgent",
			hdr: TCPHeader{
				SourcePort:      1,
				DestinationPort: 0xffff,
				Seq:             1,
				Ack:             2,
				WindowSizeRaw:   3,
				UrgentPtr:       4,
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			hdr := tt.hdr
			hdr.SetOffset(SizeTCPHeader / 4)
			flags := seqs.FlagSYN
			if hdr.Ack != 0 {
				flags |= seqs.FlagACK
			}
			if hdr.UrgentPtr != 0 {
				flags |= seqs.FlagURG
			}
			hdr.SetFlags(flags)

			var got [SizeTCPHeader]byte
			hdr.Put(got[:])

			ref := make(nsheader.TCP, nsheader.TCPMinimumSize)
			ref.Encode(&nsheader.TCPFields{
				SrcPort:       hdr.SourcePort,
				DstPort:       hdr.DestinationPort,
				SeqNum:        uint32(hdr.Seq),
				AckNum:        uint32(hdr.Ack),
				DataOffset:    SizeTCPHeader,
				Flags:         uint8(flags),
				WindowSize:    hdr.WindowSizeRaw,
				UrgentPointer: hdr.UrgentPtr,
			})
			if diff := cmp.Diff([]byte(ref), got[:]); diff != "" {
				t.Errorf("encoding mismatch with reference (-ref +got):\n%s", diff)
			}
		})
	}
}

func TestTCPHeaderRoundTrip(t *testing.T) {
	hdr := TCPHeader{
		SourcePort:      4000,
		DestinationPort: 443,
		Seq:             0xdeadbeef,
		Ack:             0xc0ffee,
		WindowSizeRaw:   2048,
		UrgentPtr:       7,
	}
	hdr.SetOffset(6) // One options word.
	hdr.SetFlags(seqs.FlagPSH | seqs.FlagACK)
	hdr.Checksum = 0xabcd

	var buf [SizeTCPHeader]byte
	hdr.Put(buf[:])
	back := DecodeTCPHeader(buf[:])
	if diff := cmp.Diff(hdr, back); diff != "" {
		t.Errorf("round trip mismatch (-put +decoded):\n%s", diff)
	}
	if back.OffsetInBytes() != 24 {
		t.Errorf("offset in bytes got %d; expected 24", back.OffsetInBytes())
	}
	if back.Flags() != seqs.FlagPSH|seqs.FlagACK {
		t.Errorf("flags got %v", back.Flags())
	}
}

func TestTCPChecksumIPv4_reference(t *testing.T) {
	src := [4]byte{192, 168, 1, 4}
	dst := [4]byte{10, 0, 0, 1}
	payloads := [][]byte{
		nil,
		[]byte("a"),
		[]byte("hello world"),
		make([]byte, 537),
	}
	for i := range payloads[3] {
		payloads[3][i] = byte(i)
	}
	for _, payload := range payloads {
		hdr := TCPHeader{
			SourcePort:      49153,
			DestinationPort: 80,
			Seq:             0x01020304,
			Ack:             0x0a0b0c0d,
			WindowSizeRaw:   4096,
		}
		hdr.SetOffset(SizeTCPHeader / 4)
		hdr.SetFlags(seqs.FlagACK)
		got := hdr.CalculateChecksumIPv4(src, dst, nil, payload)

		var raw [SizeTCPHeader]byte
		hdr.Put(raw[:])
		segment := append(raw[:], payload...)
		xsum := nsheader.PseudoHeaderChecksum(
			nsheader.TCPProtocolNumber,
			tcpipAddr(src), tcpipAddr(dst),
			uint16(len(segment)),
		)
		expect := ^nsheader.Checksum(segment, xsum)
		if got != expect {
			t.Errorf("checksum payload len %d: got %#04x; expected %#04x", len(payload), got, expect)
		}
	}
}
