package netx

import (
	"errors"
	"math/rand"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/tangshiaw/netx/pool"
)

// Well-known multicast destinations used by group membership reports.
var (
	// AllSystemsAddr is the 224.0.0.1 all-hosts group.
	AllSystemsAddr = netip.AddrFrom4([4]byte{224, 0, 0, 1})
	// AllRoutersAddr is the 224.0.0.2 all-routers group, the destination of
	// leave reports per RFC 2236.
	AllRoutersAddr = netip.AddrFrom4([4]byte{224, 0, 0, 2})
)

// Traffic classes passed to the send primitive.
const (
	tosNormal uint8 = 0
	ttlTCP    uint8 = 128
	ttlIGMP   uint8 = 1
)

// Interface describes an egress network interface as this core needs to see
// it: an address to source packets from and the largest frame it can carry.
type Interface struct {
	Name string
	Addr netip.Addr
	MTU  uint16
}

// Route is a resolved path to a destination.
type Route struct {
	Iface   *Interface
	NextHop netip.Addr
}

// Router resolves the egress interface and next hop for a destination
// address. Route table computation lives outside this core.
type Router interface {
	Resolve(dst netip.Addr) (Route, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(dst netip.Addr) (Route, error)

func (f RouterFunc) Resolve(dst netip.Addr) (Route, error) { return f(dst) }

// Sender transmits a composed packet. It owns the buffer from the moment it
// is called and is fire-and-forget from this core's perspective. A Sender
// delivering to a socket on the same Stack may complete a handshake inline;
// see [TCPSocket.FinishConnect].
type Sender interface {
	Send(b *pool.Buffer, dst netip.Addr, tos, ttl, protocol uint8, allowFragment bool)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(b *pool.Buffer, dst netip.Addr, tos, ttl, protocol uint8, allowFragment bool)

func (f SenderFunc) Send(b *pool.Buffer, dst netip.Addr, tos, ttl, protocol uint8, allowFragment bool) {
	f(b, dst, tos, ttl, protocol, allowFragment)
}

// StackConfig configures a Stack. Router, Sender and Pool are required.
type StackConfig struct {
	Router Router
	Sender Sender
	// Pool supplies buffers for outgoing control messages.
	Pool *pool.Pool
	// Logger for stack events. A nil Logger disables logging.
	Logger *slog.Logger
	// EphemeralStart is the first port of the range drawn from when binding
	// to PortAny. Defaults to 49152; the range always ends at 65535.
	EphemeralStart uint16
	// MaxGroups bounds the multicast membership list. Defaults to 8.
	MaxGroups int
	// Rand is the source for ephemeral port and sequence number draws.
	// Defaults to a time-seeded source. Only ever used under the stack lock.
	Rand *rand.Rand
}

// Stack is one transport instance: the shared state every socket created
// from it operates on. All exported methods are safe for concurrent use.
type Stack struct {
	// mu is the coarse instance lock: held across whole operations, always
	// released before a caller suspends and before any return.
	mu     sync.Mutex
	router Router
	sender Sender
	pool   *pool.Pool
	logger *slog.Logger
	rng    *rand.Rand

	tcpPorts       portTable
	udpPorts       portTable
	ephemeralStart uint16

	activeConnections atomic.Uint32
	totalConnections  atomic.Uint32
	reportsSent       atomic.Uint32

	igmpV1Router bool
	maxGroups    int
	groups       []netip.Addr
}

// NewStack creates a ready to use transport instance.
func NewStack(cfg StackConfig) (*Stack, error) {
	switch {
	case cfg.Router == nil:
		return nil, errors.New("netx: nil Router")
	case cfg.Sender == nil:
		return nil, errors.New("netx: nil Sender")
	case cfg.Pool == nil:
		return nil, errors.New("netx: nil Pool")
	}
	s := &Stack{
		router:         cfg.Router,
		sender:         cfg.Sender,
		pool:           cfg.Pool,
		logger:         cfg.Logger,
		rng:            cfg.Rand,
		ephemeralStart: cfg.EphemeralStart,
		maxGroups:      cfg.MaxGroups,
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.ephemeralStart == 0 {
		s.ephemeralStart = 49152
	}
	if s.maxGroups == 0 {
		s.maxGroups = 8
	}
	return s, nil
}

// ConnectionCounts returns the number of connections currently being
// attempted or open, and the total attempted since creation.
func (s *Stack) ConnectionCounts() (active, total uint32) {
	return s.activeConnections.Load(), s.totalConnections.Load()
}

// connectStarted and connectRollback adjust the connection counters as a
// matched pair so an early-return failure leaves them exactly as found.
func (s *Stack) connectStarted() {
	s.activeConnections.Add(1)
	s.totalConnections.Add(1)
}

func (s *Stack) connectRollback() {
	s.activeConnections.Add(^uint32(0))
	s.totalConnections.Add(^uint32(0))
}

// rand16 draws 16 bits from the stack's random source. Caller holds s.mu.
func (s *Stack) rand16() uint32 {
	return uint32(s.rng.Intn(1 << 16))
}
