package netx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBindExplicitPort(t *testing.T) {
	s, _ := newTestStack(t)
	u := NewUDPSocket(s)
	if err := u.Bind(4000, 0); err != nil {
		t.Fatal(err)
	}
	if u.Port() != 4000 {
		t.Errorf("port got %d; expected 4000", u.Port())
	}
	if err := u.Bind(4001, 0); err != ErrAlreadyBound {
		t.Errorf("second bind got %v; expected ErrAlreadyBound", err)
	}
	if err := u.Unbind(); err != nil {
		t.Fatal(err)
	}
	if u.Port() != 0 {
		t.Errorf("port after unbind got %d", u.Port())
	}
	if err := u.Unbind(); err != ErrNotBound {
		t.Errorf("second unbind got %v; expected ErrNotBound", err)
	}
}

func TestBindEphemeral(t *testing.T) {
	s, _ := newTestStack(t)
	seen := make(map[uint16]bool)
	for i := 0; i < 64; i++ {
		u := NewUDPSocket(s)
		if err := u.Bind(PortAny, 0); err != nil {
			t.Fatal(err)
		}
		port := u.Port()
		if port < 49152 {
			t.Fatalf("ephemeral port %d below range start", port)
		}
		if seen[port] {
			t.Fatalf("port %d assigned twice", port)
		}
		seen[port] = true
	}
}

func TestBindContentionNoWait(t *testing.T) {
	s, _ := newTestStack(t)
	a := NewUDPSocket(s)
	if err := a.Bind(5000, 0); err != nil {
		t.Fatal(err)
	}
	b := NewUDPSocket(s)
	if err := b.Bind(5000, 0); err != ErrPortUnavailable {
		t.Errorf("contended bind got %v; expected ErrPortUnavailable", err)
	}
	// The failed attempt must leave b fully bindable elsewhere.
	if err := b.Bind(5001, 0); err != nil {
		t.Errorf("rebind after contention: %v", err)
	}
}

// Ports colliding in the same hash bucket but differing in number must not
// contend.
func TestBindBucketSharing(t *testing.T) {
	s, _ := newTestStack(t)
	// 80 and 0x2050 = 8272 hash identically: (p + p>>8) mod 32.
	a := NewUDPSocket(s)
	b := NewUDPSocket(s)
	if portHash(uint16(80)) != portHash(uint16(8272)) {
		t.Fatal("test ports no longer share a bucket")
	}
	if err := a.Bind(80, 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Bind(8272, 0); err != nil {
		t.Errorf("bucket-sharing bind: %v", err)
	}
}

func TestBindTimeout(t *testing.T) {
	s, _ := newTestStack(t)
	holder := NewUDPSocket(s)
	require.NoError(t, holder.Bind(6000, 0))

	w := NewUDPSocket(s)
	err := w.Bind(6000, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	// The timed out waiter must be fully reverted and bindable.
	require.NoError(t, w.Bind(6001, 0))
	require.Equal(t, uint16(6001), w.Port())
}

// Unbinding a contended port hands it to suspended waiters strictly oldest
// first, and waiters behind the new holder carry over to it.
func TestBindHandoffFIFO(t *testing.T) {
	s, _ := newTestStack(t)
	holder := NewUDPSocket(s)
	require.NoError(t, holder.Bind(7000, 0))

	type result struct {
		who string
		err error
	}
	results := make(chan result, 3)
	sockets := map[string]*UDPSocket{}
	for _, who := range []string{"a", "b", "c"} {
		who := who
		u := NewUDPSocket(s)
		sockets[who] = u
		go func() {
			results <- result{who, u.Bind(7000, -1)}
		}()
		// Serialize suspensions so the queue order is a, b, c.
		require.Eventually(t, func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return u.inProgress
		}, 2*time.Second, time.Millisecond)
	}

	require.NoError(t, holder.Unbind())
	r := <-results
	require.Equal(t, "a", r.who)
	require.NoError(t, r.err)
	require.Equal(t, uint16(7000), sockets["a"].Port())

	// b and c now wait on a.
	require.NoError(t, sockets["a"].Unbind())
	r = <-results
	require.Equal(t, "b", r.who)
	require.NoError(t, r.err)

	require.NoError(t, sockets["b"].Unbind())
	r = <-results
	require.Equal(t, "c", r.who)
	require.NoError(t, r.err)
	require.Equal(t, uint16(7000), sockets["c"].Port())
}

func TestTCPAndUDPPortsIndependent(t *testing.T) {
	s, _ := newTestStack(t)
	u := NewUDPSocket(s)
	if err := u.Bind(9000, 0); err != nil {
		t.Fatal(err)
	}
	tc := NewTCPSocket(s, TCPSocketConfig{})
	if err := tc.Bind(9000, 0); err != nil {
		t.Errorf("tcp bind on udp-held port: %v", err)
	}
}

func TestPortHashRange(t *testing.T) {
	for _, port := range []uint16{0, 1, 80, 255, 256, 0x5050, 0xffff} {
		h := portHash(port)
		if h < 0 || h >= portTableSize {
			t.Errorf("hash of %d out of range: %d", port, h)
		}
	}
}
