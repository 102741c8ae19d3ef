// package pool provides fixed-size packet buffers with an adjustable
// header-prepend margin and a pool to allocate them from with a bounded wait.
package pool

import (
	"errors"
	"time"
)

// Allocation errors.
var (
	ErrNoBuffers   = errors.New("pool: no buffers available")
	ErrBadHeadroom = errors.New("pool: prepend exceeds headroom")
)

// Buffer is a packet buffer. Payload bytes are appended after a reserved
// headroom region; protocol layers claim header space back-to-front with
// Prepend so a fully built packet is a single contiguous byte range.
type Buffer struct {
	data     []byte
	headroom int
	// start of the used region; decreases as headers are prepended.
	front int
	// end of the used region (exclusive).
	end  int
	pool *Pool
}

// NewBuffer returns a standalone buffer with the given payload capacity and
// headroom. Buffers obtained from a Pool should be preferred; NewBuffer
// exists for tests and one-off composition.
func NewBuffer(payload, headroom int) *Buffer {
	b := &Buffer{data: make([]byte, headroom+payload), headroom: headroom}
	b.Reset()
	return b
}

// Reset discards contents and restores the full headroom margin.
func (b *Buffer) Reset() {
	b.front = b.headroom
	b.end = b.headroom
}

// Prepend claims n bytes of headroom immediately before the used region and
// returns the claimed slice for the caller to fill in.
func (b *Buffer) Prepend(n int) ([]byte, error) {
	if n > b.front {
		return nil, ErrBadHeadroom
	}
	b.front -= n
	return b.data[b.front : b.front+n], nil
}

// Append grows the used region by n bytes at the tail and returns the claimed
// slice, or nil if capacity is exhausted.
func (b *Buffer) Append(n int) []byte {
	if b.end+n > len(b.data) {
		return nil
	}
	s := b.data[b.end : b.end+n]
	b.end += n
	return s
}

// Bytes returns the used region: every prepended header plus appended payload.
func (b *Buffer) Bytes() []byte { return b.data[b.front:b.end] }

// Len returns the length of the used region.
func (b *Buffer) Len() int { return b.end - b.front }

// Headroom returns the remaining prepend margin.
func (b *Buffer) Headroom() int { return b.front }

// Free returns the buffer to its pool. It is a no-op for pool-less buffers.
func (b *Buffer) Free() {
	if b.pool != nil {
		b.Reset()
		b.pool.put(b)
	}
}

// Pool is a fixed set of equally sized buffers. Get blocks up to a timeout
// when the pool is empty, so transient exhaustion degrades to a bounded wait
// instead of an allocation.
type Pool struct {
	free     chan *Buffer
	payload  int
	headroom int
}

// New creates a pool of n buffers, each with the given payload capacity and
// header-prepend margin.
func New(n, payload, headroom int) *Pool {
	p := &Pool{
		free:     make(chan *Buffer, n),
		payload:  payload,
		headroom: headroom,
	}
	for i := 0; i < n; i++ {
		b := NewBuffer(payload, headroom)
		b.pool = p
		p.free <- b
	}
	return p
}

// Get allocates a buffer. timeout == 0 fails immediately on an empty pool,
// a negative timeout waits indefinitely, otherwise Get waits at most the
// given duration. An exhausted wait returns ErrNoBuffers.
func (p *Pool) Get(timeout time.Duration) (*Buffer, error) {
	select {
	case b := <-p.free:
		return b, nil
	default:
	}
	if timeout == 0 {
		return nil, ErrNoBuffers
	}
	if timeout < 0 {
		return <-p.free, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-p.free:
		return b, nil
	case <-timer.C:
		return nil, ErrNoBuffers
	}
}

// Available returns the number of free buffers.
func (p *Pool) Available() int { return len(p.free) }

func (p *Pool) put(b *Buffer) {
	select {
	case p.free <- b:
	default:
		// Double free; drop the buffer rather than corrupt the pool.
	}
}
