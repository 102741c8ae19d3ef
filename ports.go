package netx

import (
	"sync"
	"time"

	"log/slog"

	"golang.org/x/exp/constraints"

	"github.com/tangshiaw/netx/waitq"
)

// PortAny asks Bind to draw a port from the ephemeral range.
const PortAny uint16 = 0

const (
	portTableSize = 32
	portTableMask = portTableSize - 1
)

// portHash folds the upper byte of a port into the lower one so nearby and
// byte-swapped ports spread across buckets, then reduces modulo table size.
func portHash[T constraints.Unsigned](port T) int {
	p := uint64(port)
	return int((p + p>>8) & portTableMask)
}

// binding links a socket into a port table bucket ring and anchors the wait
// list of callers suspended on its port. Embedded by both socket variants.
//
// Ring links are guarded by the owning table's lock; port and inProgress by
// the stack lock.
type binding struct {
	port uint16
	// inProgress marks a bind suspension pending on another holder.
	inProgress bool
	next, prev *binding
	// waiters queues callers suspended until this binding's port frees up.
	waiters waitq.Queue[*binding]
}

// bound reports whether the binding is linked into a bucket ring. A bound
// binding is always part of a valid ring, so a non-nil link suffices.
func (b *binding) bound() bool { return b.next != nil }

// portTable is a fixed array of bucket rings holding the sockets bound to
// ports hashing to each bucket. Ring members sharing a bucket need not share
// a port; only an exact port match counts as contention.
type portTable struct {
	// mu guards the bucket ring links independently of the stack lock, so
	// contexts that never take the coarse lock (receive demux, completion
	// fast paths) still never observe a half-linked ring.
	mu      sync.Mutex
	buckets [portTableSize]*binding
}

// lookup returns the binding bound to port, or nil.
func (pt *portTable) lookup(port uint16) *binding {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	head := pt.buckets[portHash(port)]
	if head == nil {
		return nil
	}
	for e := head; ; {
		if e.port == port {
			return e
		}
		e = e.next
		if e == head {
			return nil
		}
	}
}

// insert splices b into its bucket ring. Both neighbors are rewired inside
// the critical section, so no reader sees an intermediate state.
func (pt *portTable) insert(b *binding) {
	i := portHash(b.port)
	pt.mu.Lock()
	head := pt.buckets[i]
	if head == nil {
		b.next = b
		b.prev = b
		pt.buckets[i] = b
	} else {
		tail := head.prev
		b.next = head
		b.prev = tail
		tail.next = b
		head.prev = b
	}
	pt.mu.Unlock()
}

// remove unlinks b from its bucket ring.
func (pt *portTable) remove(b *binding) {
	i := portHash(b.port)
	pt.mu.Lock()
	if b.next == b {
		pt.buckets[i] = nil
	} else {
		b.prev.next = b.next
		b.next.prev = b.prev
		if pt.buckets[i] == b {
			pt.buckets[i] = b.next
		}
	}
	b.next = nil
	b.prev = nil
	pt.mu.Unlock()
}

// bindPort implements Bind for both socket variants. timeout == 0 fails
// immediately on contention, a negative timeout waits indefinitely.
func (s *Stack) bindPort(pt *portTable, b *binding, port uint16, timeout time.Duration) error {
	s.mu.Lock()
	if b.bound() || b.inProgress {
		s.mu.Unlock()
		return ErrAlreadyBound
	}
	if port == PortAny {
		var ok bool
		port, ok = s.findFreePort(pt)
		if !ok {
			s.mu.Unlock()
			return ErrNoFreePorts
		}
	}
	b.port = port
	holder := pt.lookup(port)
	if holder == nil {
		pt.insert(b)
		s.mu.Unlock()
		s.trace("bind", slog.Int("port", int(port)))
		return nil
	}
	if timeout == 0 {
		b.port = 0
		s.mu.Unlock()
		return ErrPortUnavailable
	}
	// Suspend on the holder's wait list until the port changes hands; the
	// stack lock is released as part of the handoff. Unbind re-links this
	// binding before resuming us, so a nil status means we hold the port.
	b.inProgress = true
	s.trace("bind:wait", slog.Int("port", int(port)), slog.Int("waiters", holder.waiters.Len()))
	return holder.waiters.Suspend(s.bindCleanup, b, &s.mu, timeout)
}

// bindCleanup reverts a binding whose suspension ended abnormally. Runs
// without the stack lock held, exactly once per abandoned bind.
func (s *Stack) bindCleanup(b *binding) {
	s.mu.Lock()
	b.port = 0
	b.inProgress = false
	s.mu.Unlock()
}

// unbindPort releases b's port. If callers are suspended waiting for it, the
// oldest one is bound in place of b and resumed, and any remaining waiters
// carry over to the new holder.
func (s *Stack) unbindPort(pt *portTable, b *binding) error {
	s.mu.Lock()
	if !b.bound() {
		s.mu.Unlock()
		return ErrNotBound
	}
	pt.remove(b)
	port := b.port
	b.port = 0

	wb, resolve, ok := b.waiters.Dequeue()
	if !ok {
		s.mu.Unlock()
		s.trace("unbind", slog.Int("port", int(port)))
		return nil
	}
	// Hand the port to the next waiter in FIFO order.
	wb.port = port
	wb.inProgress = false
	b.waiters.TransferTo(&wb.waiters)
	pt.insert(wb)
	s.mu.Unlock()
	s.trace("unbind:handoff", slog.Int("port", int(port)))
	resolve(nil)
	return nil
}

// findFreePort draws a random port from the ephemeral range, then probes
// upward with wraparound for one not already bound. Caller holds s.mu.
func (s *Stack) findFreePort(pt *portTable) (uint16, bool) {
	span := 1<<16 - int(s.ephemeralStart)
	port := s.ephemeralStart + uint16(s.rng.Intn(span))
	for i := 0; i < span; i++ {
		if pt.lookup(port) == nil {
			return port, true
		}
		if port == 0xffff {
			port = s.ephemeralStart
		} else {
			port++
		}
	}
	return 0, false
}
