/*
package waitq implements the cooperative suspension primitive shared by
connection waits and port-bind contention. A Queue is a strict FIFO wait list:
callers suspend on it with a cleanup callback and a timeout, and the entity
that frees the contended resource resumes them in enqueue order.

A suspended caller is resolved by exactly one of three events: a normal
resume, expiry of its timeout, or an external abort. The cleanup callback runs
exactly once on the timeout and abort paths and never after a normal resume.
*/
package waitq

import (
	"errors"
	"sync"
	"time"
)

// Statuses delivered to suspended callers on abnormal resolution.
var (
	ErrTimeout = errors.New("waitq: suspension timed out")
	ErrAborted = errors.New("waitq: suspension aborted")
)

// Forever suspends with no timeout. Any negative duration behaves the same.
const Forever time.Duration = -1

// qmu guards the link state and resolution flag of every Waiter in the
// package. Queue entries migrate between queues (see TransferTo) so a
// per-queue lock cannot make the claim-and-unlink step atomic; a single
// package lock plays the role the original design gives to a global
// interrupt lockout around wait-list surgery.
var qmu sync.Mutex

// Waiter is one suspended caller: a node of a circular doubly linked FIFO
// ring plus the cleanup callback and context used on the abort path.
type Waiter[T any] struct {
	next, prev *Waiter[T]
	q          *Queue[T]
	cleanup    func(T)
	ctx        T
	resolved   bool
	done       chan error
}

// Queue is a FIFO wait list. The zero value is an empty queue ready for use.
type Queue[T any] struct {
	head  *Waiter[T]
	count int
}

// Len returns the number of suspended callers on q.
func (q *Queue[T]) Len() int {
	qmu.Lock()
	n := q.count
	qmu.Unlock()
	return n
}

// Add links a new waiter at the tail of q without blocking. The caller must
// follow up with [Waiter.Wait]; linking and parking are split so a resumer
// racing the caller between the two finds the waiter already claimable, and
// Wait then returns immediately instead of parking past its resolution.
func (q *Queue[T]) Add(cleanup func(T), ctx T) *Waiter[T] {
	w := &Waiter[T]{
		q:       q,
		cleanup: cleanup,
		ctx:     ctx,
		done:    make(chan error, 1),
	}
	qmu.Lock()
	q.push(w)
	qmu.Unlock()
	return w
}

// Suspend appends the calling goroutine to q and blocks it until resolution.
// Equivalent to [Queue.Add] followed by [Waiter.Wait].
func (q *Queue[T]) Suspend(cleanup func(T), ctx T, lock *sync.Mutex, timeout time.Duration) error {
	return q.Add(cleanup, ctx).Wait(lock, timeout)
}

// Wait blocks the calling goroutine on w until resolution. If lock is
// non-nil it is released before the caller parks, so a resumer may acquire
// it to signal completion; the caller must not intend to re-acquire the same
// lock before parking. On timeout or abort, cleanup(ctx) runs exactly once
// (without lock held) and the abnormal status is returned. A normal resume
// returns the status passed to Resume, and cleanup does not run.
func (w *Waiter[T]) Wait(lock *sync.Mutex, timeout time.Duration) error {
	if lock != nil {
		lock.Unlock()
	}

	var expiry <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expiry = timer.C
	}
	select {
	case status := <-w.done:
		return status
	case <-expiry:
	}

	// The timer fired. Claim the waiter unless a resume won the race.
	qmu.Lock()
	if w.resolved {
		qmu.Unlock()
		return <-w.done // Resumed normally inside the race window.
	}
	w.resolved = true
	w.q.unlink(w)
	qmu.Unlock()
	if w.cleanup != nil {
		w.cleanup(w.ctx)
	}
	return ErrTimeout
}

// Resume dequeues the oldest waiter and resolves it with status. It reports
// whether a waiter was present. The resumed caller's cleanup does not run.
func (q *Queue[T]) Resume(status error) bool {
	_, resolve, ok := q.Dequeue()
	if !ok {
		return false
	}
	resolve(status)
	return true
}

// Dequeue claims the oldest waiter without resolving it, returning the
// waiter's context and a resolve function that delivers the final status.
// The split lets a resumer mutate shared state (e.g. re-link a port binding)
// before the suspended caller observes its status. The claimed waiter's
// cleanup will not run.
func (q *Queue[T]) Dequeue() (ctx T, resolve func(error), ok bool) {
	qmu.Lock()
	w := q.head
	if w == nil {
		qmu.Unlock()
		return ctx, nil, false
	}
	w.resolved = true
	q.unlink(w)
	qmu.Unlock()
	return w.ctx, func(status error) { w.done <- status }, true
}

// Abort claims the oldest waiter, runs its cleanup and resolves it with
// status (ErrAborted if status is nil). It reports whether a waiter was
// present. Abort must not be called while holding a lock the cleanup
// acquires.
func (q *Queue[T]) Abort(status error) bool {
	qmu.Lock()
	w := q.head
	if w == nil {
		qmu.Unlock()
		return false
	}
	w.resolved = true
	q.unlink(w)
	qmu.Unlock()
	if w.cleanup != nil {
		w.cleanup(w.ctx)
	}
	if status == nil {
		status = ErrAborted
	}
	w.done <- status
	return true
}

// TransferTo moves every waiter from q to dst, preserving FIFO order. Used
// when the resource the waiters contend for changes hands.
func (q *Queue[T]) TransferTo(dst *Queue[T]) {
	if q == dst {
		return
	}
	qmu.Lock()
	for q.head != nil {
		w := q.head
		q.unlink(w)
		w.q = dst
		dst.push(w)
	}
	qmu.Unlock()
}

// push links w at the tail of the ring. Caller holds qmu.
func (q *Queue[T]) push(w *Waiter[T]) {
	if q.head == nil {
		w.next = w
		w.prev = w
		q.head = w
	} else {
		tail := q.head.prev
		w.next = q.head
		w.prev = tail
		tail.next = w
		q.head.prev = w
	}
	w.q = q
	q.count++
}

// unlink removes w from the ring. Caller holds qmu. The ring is never
// observable in a half-linked state: both neighbors are rewired before the
// head pointer can change.
func (q *Queue[T]) unlink(w *Waiter[T]) {
	if w.next == w {
		q.head = nil
	} else {
		w.prev.next = w.next
		w.next.prev = w.prev
		if q.head == w {
			q.head = w.next
		}
	}
	w.next = nil
	w.prev = nil
	q.count--
}
