package netx

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/smallnest/ringbuffer"
	"github.com/soypat/seqs"
	"github.com/tangshiaw/netx/header"
	"github.com/tangshiaw/netx/waitq"
)

// TCPSocketConfig configures a TCP socket's buffering and timers. The zero
// value is usable; each field falls back to its default when zero.
type TCPSocketConfig struct {
	// TxBufSize and RxBufSize size the stream buffers. Default 2048 each.
	TxBufSize int
	RxBufSize int
	// Window is the receive window advertised on connection setup.
	// Default 4096.
	Window seqs.Size
	// RetryInterval is the initial retransmission interval. Default 1s.
	RetryInterval time.Duration
}

func (cfg *TCPSocketConfig) setDefaults() {
	if cfg.TxBufSize == 0 {
		cfg.TxBufSize = 2048
	}
	if cfg.RxBufSize == 0 {
		cfg.RxBufSize = 2048
	}
	if cfg.Window == 0 {
		cfg.Window = 4096
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Second
	}
}

// TCPSocket is a stream socket. Only the active (client) open is
// implemented; see Connect for the handshake contract.
type TCPSocket struct {
	binding
	stack *Stack

	// connMu guards the connection fields below. It is ordered after the
	// stack lock and is the only lock FinishConnect takes, so a Sender
	// invoked during Connect may complete the handshake inline.
	connMu sync.Mutex
	// state holds a seqs.State. Written under connMu, read lock-free.
	state atomic.Uint32

	peerAddr netip.Addr
	peerPort uint16
	iface    *Interface
	nextHop  netip.Addr

	txSeq          seqs.Value
	rcvWnd         seqs.Size
	rcvWndDefault  seqs.Size
	rcvWndLastSent seqs.Size
	finReceived    bool

	retryInterval time.Duration
	retryIn       time.Duration
	retries       int

	outstandingBytes seqs.Size
	packetsSent      uint32
	packetsReceived  uint32
	bytesSent        uint64
	bytesReceived    uint64
	retransmits      uint32
	checksumErrors   uint32

	tx *ringbuffer.RingBuffer
	rx *ringbuffer.RingBuffer

	// connectWaiters holds the caller suspended in Connect, if any.
	connectWaiters waitq.Queue[*TCPSocket]
}

// NewTCPSocket creates a closed, unbound stream socket on s.
func NewTCPSocket(s *Stack, cfg TCPSocketConfig) *TCPSocket {
	cfg.setDefaults()
	t := &TCPSocket{
		stack:         s,
		rcvWndDefault: cfg.Window,
		retryInterval: cfg.RetryInterval,
		tx:            ringbuffer.New(cfg.TxBufSize),
		rx:            ringbuffer.New(cfg.RxBufSize),
	}
	t.state.Store(uint32(seqs.StateClosed))
	return t
}

// State returns the connection state. Safe to call from any goroutine.
func (t *TCPSocket) State() seqs.State {
	return seqs.State(t.state.Load())
}

// setState stores the state. Caller holds t.connMu.
func (t *TCPSocket) setState(state seqs.State) {
	t.state.Store(uint32(state))
}

// Bind claims port for t, or an ephemeral port if port is PortAny. Waiting
// semantics match [UDPSocket.Bind].
func (t *TCPSocket) Bind(port uint16, timeout time.Duration) error {
	return t.stack.bindPort(&t.stack.tcpPorts, &t.binding, port, timeout)
}

// Unbind releases t's port, handing it to the oldest bind waiter if any.
// The socket must be closed first.
func (t *TCPSocket) Unbind() error {
	if t.State() != seqs.StateClosed {
		return ErrNotClosed
	}
	return t.stack.unbindPort(&t.stack.tcpPorts, &t.binding)
}

// Port returns the bound local port, or zero if unbound.
func (t *TCPSocket) Port() uint16 {
	t.stack.mu.Lock()
	defer t.stack.mu.Unlock()
	if !t.bound() {
		return 0
	}
	return t.port
}

// Connect starts an active open towards peer:peerPort and sends the opening
// segment. The socket must be bound and closed.
//
// With timeout zero Connect returns ErrInProgress after sending; the caller
// observes completion via State or completes it from its Sender with
// FinishConnect. A positive timeout bounds the wait; a negative one waits
// indefinitely. A wait that ends without establishment reverts the socket to
// closed with its binding intact.
func (t *TCPSocket) Connect(peer netip.Addr, peerPort uint16, timeout time.Duration) error {
	s := t.stack
	s.mu.Lock()
	if !t.bound() {
		s.mu.Unlock()
		return ErrNotBound
	}
	if t.State() != seqs.StateClosed {
		s.mu.Unlock()
		return ErrNotClosed
	}
	route, err := s.router.Resolve(peer)
	if err != nil {
		s.mu.Unlock()
		s.debug("connect:no-route", slog.String("peer", peer.String()))
		return ErrIPAddress
	}

	s.connectStarted()
	t.connMu.Lock()
	t.setState(seqs.StateSynSent)
	t.peerAddr = peer
	t.peerPort = peerPort
	t.iface = route.Iface
	t.nextHop = route.NextHop
	t.connMu.Unlock()

	// The opening segment must fit the egress link unfragmented.
	if route.Iface.MTU < header.SizeIPv4Header+header.SizeTCPHeader {
		t.rollbackConnect()
		s.mu.Unlock()
		return ErrInvalidInterface
	}

	// Seed the send sequence. A reused socket advances past its previous
	// numbering instead of drawing fresh, keeping old segments out of the
	// new connection's window.
	if t.txSeq == 0 {
		t.txSeq = seqs.Value(s.rand16())<<16 | seqs.Value(s.rand16())
	} else {
		t.txSeq += 0x10000 + seqs.Value(s.rand16())
	}
	t.txSeq++

	t.rcvWnd = t.rcvWndDefault
	t.rcvWndLastSent = t.rcvWndDefault
	t.finReceived = false
	t.retryIn = t.retryInterval
	t.retries = 0
	t.outstandingBytes = 0
	t.packetsSent = 0
	t.packetsReceived = 0
	t.bytesSent = 0
	t.bytesReceived = 0
	t.retransmits = 0
	t.checksumErrors = 0
	t.tx.Reset()
	t.rx.Reset()

	s.info("connect",
		slog.Int("port", int(t.port)),
		slog.String("peer", peer.String()),
		slog.Int("peerport", int(peerPort)),
	)
	// Blocking callers link their waiter before the opening segment goes
	// out, so a completion arriving from inside the send path resolves the
	// waiter instead of racing its enqueue.
	var w *waitq.Waiter[*TCPSocket]
	if timeout != 0 {
		w = t.connectWaiters.Add(s.connectCleanup, t)
	}
	// The opening segment carries the sequence number one below the first
	// data byte. Send failure is not fatal here; the retransmit path owns
	// recovery once the state machine has advanced.
	if err := s.sendSYN(t, t.txSeq-1); err != nil {
		s.warn("connect:syn-send", slog.String("err", err.Error()))
	}
	if timeout == 0 {
		// A loopback or on-host Sender may have completed the handshake
		// from within sendSYN.
		established := t.State() == seqs.StateEstablished
		s.mu.Unlock()
		if established {
			return nil
		}
		return ErrInProgress
	}
	return w.Wait(&s.mu, timeout)
}

// FinishConnect completes a pending handshake: the opening segment has been
// acknowledged and the peer's own opening segment acknowledged in turn.
// Reports whether the socket transitioned to established. Safe to call from
// a Sender while Connect is still on the stack.
func (t *TCPSocket) FinishConnect() bool {
	t.connMu.Lock()
	if t.State() != seqs.StateSynSent {
		t.connMu.Unlock()
		return false
	}
	t.setState(seqs.StateEstablished)
	t.connMu.Unlock()
	t.connectWaiters.Resume(nil)
	t.stack.debug("connect:established", slog.Int("port", int(t.port)))
	return true
}

// AbortConnect tears down a pending active open, resuming a suspended
// Connect caller with ErrAborted. A non-blocking open with no suspended
// caller is reverted directly.
func (t *TCPSocket) AbortConnect() {
	if t.connectWaiters.Abort(nil) {
		return
	}
	t.connectCleanupIfPending()
}

// connectCleanupIfPending is the AbortConnect path for a socket nobody is
// suspended on.
func (t *TCPSocket) connectCleanupIfPending() {
	if t.State() == seqs.StateSynSent {
		t.stack.connectCleanup(t)
	}
}

// connectCleanup reverts a socket whose open ended abnormally: timeout,
// abort, or a wait cut short after inline establishment. Runs without the
// stack lock held, exactly once per abandoned open.
func (s *Stack) connectCleanup(t *TCPSocket) {
	t.connMu.Lock()
	state := t.State()
	if state != seqs.StateSynSent && state != seqs.StateEstablished {
		t.connMu.Unlock()
		return
	}
	t.setState(seqs.StateClosed)
	t.peerAddr = netip.Addr{}
	t.peerPort = 0
	t.iface = nil
	t.nextHop = netip.Addr{}
	t.connMu.Unlock()
	s.activeConnections.Add(^uint32(0))
	s.debug("connect:cleanup", slog.Int("port", int(t.port)), slog.String("was", state.String()))
}

// rollbackConnect undoes a connect attempt that failed before the opening
// segment went out. Caller holds s.mu.
func (t *TCPSocket) rollbackConnect() {
	t.connMu.Lock()
	t.setState(seqs.StateClosed)
	t.peerAddr = netip.Addr{}
	t.peerPort = 0
	t.iface = nil
	t.nextHop = netip.Addr{}
	t.connMu.Unlock()
	t.stack.connectRollback()
}

// Peer returns the remote endpoint of a connecting or connected socket.
func (t *TCPSocket) Peer() (netip.Addr, uint16) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.peerAddr, t.peerPort
}

// TCPStats is a snapshot of a socket's traffic counters. Every counter is
// zeroed at the start of each open, so a snapshot always describes the
// current connection only.
type TCPStats struct {
	PacketsSent     uint32
	PacketsReceived uint32
	BytesSent       uint64
	BytesReceived   uint64
	Retransmits     uint32
	ChecksumErrors  uint32
}

// Stats returns a snapshot of t's traffic counters.
func (t *TCPSocket) Stats() TCPStats {
	s := t.stack
	s.mu.Lock()
	defer s.mu.Unlock()
	return TCPStats{
		PacketsSent:     t.packetsSent,
		PacketsReceived: t.packetsReceived,
		BytesSent:       t.bytesSent,
		BytesReceived:   t.bytesReceived,
		Retransmits:     t.retransmits,
		ChecksumErrors:  t.checksumErrors,
	}
}
