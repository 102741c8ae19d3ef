package netx

import (
	"math/rand"
	"net/netip"
	"sync"
	"testing"

	"github.com/tangshiaw/netx/pool"
)

// sentPacket is one Send call as observed by the recording sender.
type sentPacket struct {
	data          []byte
	dst           netip.Addr
	tos, ttl      uint8
	protocol      uint8
	allowFragment bool
}

// recordingSender captures packets and optionally forwards each one to a tap
// before freeing the buffer, emulating an on-host delivery path.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentPacket
	tap  func(sentPacket)
}

func (r *recordingSender) Send(b *pool.Buffer, dst netip.Addr, tos, ttl, protocol uint8, allowFragment bool) {
	pkt := sentPacket{
		data:          append([]byte(nil), b.Bytes()...),
		dst:           dst,
		tos:           tos,
		ttl:           ttl,
		protocol:      protocol,
		allowFragment: allowFragment,
	}
	b.Free()
	r.mu.Lock()
	r.sent = append(r.sent, pkt)
	tap := r.tap
	r.mu.Unlock()
	if tap != nil {
		tap(pkt)
	}
}

func (r *recordingSender) packets() []sentPacket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentPacket(nil), r.sent...)
}

func (r *recordingSender) last(t *testing.T) sentPacket {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no packets sent")
	}
	return r.sent[len(r.sent)-1]
}

var testIface = &Interface{
	Name: "test0",
	Addr: netip.AddrFrom4([4]byte{192, 168, 1, 4}),
	MTU:  1500,
}

// newTestStack builds a stack with a recording sender, a single static route
// and a deterministic random source.
func newTestStack(t *testing.T) (*Stack, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	s, err := NewStack(StackConfig{
		Router: RouterFunc(func(dst netip.Addr) (Route, error) {
			return Route{Iface: testIface, NextHop: dst}, nil
		}),
		Sender: sender,
		Pool:   pool.New(16, 512, 64),
		Rand:   rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, sender
}

func TestNewStackValidation(t *testing.T) {
	router := RouterFunc(func(netip.Addr) (Route, error) { return Route{}, nil })
	sender := &recordingSender{}
	p := pool.New(1, 64, 0)
	for _, tt := range []struct {
		name string
		cfg  StackConfig
	}{
		{"no-router", StackConfig{Sender: sender, Pool: p}},
		{"no-sender", StackConfig{Router: router, Pool: p}},
		{"no-pool", StackConfig{Router: router, Sender: sender}},
	} {
		if _, err := NewStack(tt.cfg); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := NewStack(StackConfig{Router: router, Sender: sender, Pool: p}); err != nil {
		t.Errorf("minimal config rejected: %v", err)
	}
}
