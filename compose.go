package netx

import (
	"log/slog"

	"github.com/soypat/seqs"
	"github.com/tangshiaw/netx/header"
)

// sendSYN composes and transmits a connection-opening segment for t with
// sequence number iss. Caller holds s.mu.
func (s *Stack) sendSYN(t *TCPSocket, iss seqs.Value) error {
	b, err := s.pool.Get(0)
	if err != nil {
		return err
	}
	wnd := t.rcvWnd
	if wnd > 0xffff {
		wnd = 0xffff
	}
	hdr := header.TCPHeader{
		SourcePort:      t.port,
		DestinationPort: t.peerPort,
		Seq:             iss,
		Ack:             0,
		WindowSizeRaw:   uint16(wnd),
	}
	hdr.SetOffset(header.SizeTCPHeader / 4)
	hdr.SetFlags(seqs.FlagSYN)
	hdr.Checksum = hdr.CalculateChecksumIPv4(t.iface.Addr.As4(), t.peerAddr.As4(), nil, nil)

	buf, err := b.Prepend(header.SizeTCPHeader)
	if err != nil {
		b.Free()
		return err
	}
	hdr.Put(buf)
	t.packetsSent++
	t.rcvWndLastSent = wnd
	s.trace("tx:syn",
		slog.Int("port", int(t.port)),
		slog.Uint64("seq", uint64(iss)),
		slog.String("dst", t.peerAddr.String()),
	)
	s.sender.Send(b, t.peerAddr, tosNormal, ttlTCP, header.IPProtoTCP, true)
	return nil
}
