package netx

import (
	"errors"

	"github.com/tangshiaw/netx/waitq"
)

// Operation statuses. A nil error is success; buffer pool and send errors
// pass through to callers verbatim.
var (
	// ErrNotBound is returned by operations requiring a socket bound to a
	// local port.
	ErrNotBound = errors.New("netx: socket not bound to a port")
	// ErrNotClosed is returned by Connect on a socket already past Closed.
	ErrNotClosed = errors.New("netx: socket not in closed state")
	// ErrIPAddress reports an address no route resolves, or one invalid for
	// the requested operation.
	ErrIPAddress = errors.New("netx: bad or unroutable address")
	// ErrInvalidInterface reports an egress interface whose MTU cannot carry
	// a minimal control segment.
	ErrInvalidInterface = errors.New("netx: interface MTU below minimum header size")
	// ErrAlreadyBound is returned by Bind on a socket already bound or with
	// a bind pending.
	ErrAlreadyBound = errors.New("netx: socket already bound or bind pending")
	// ErrNoFreePorts reports an exhausted ephemeral port range.
	ErrNoFreePorts = errors.New("netx: ephemeral port range exhausted")
	// ErrPortUnavailable is returned by a no-wait Bind on an occupied port.
	ErrPortUnavailable = errors.New("netx: port bound by another socket")
	// ErrInProgress is returned by a non-blocking Connect once the opening
	// segment is on its way; completion arrives through receive processing.
	ErrInProgress = errors.New("netx: connection attempt in progress")
	// ErrNoMoreEntries reports a full multicast group membership list.
	ErrNoMoreEntries = errors.New("netx: group membership list full")
	// ErrEntryNotFound is returned by LeaveGroup for a group never joined.
	ErrEntryNotFound = errors.New("netx: group not joined")

	// ErrTimeout and ErrAborted surface from suspended waits unchanged.
	ErrTimeout = waitq.ErrTimeout
	ErrAborted = waitq.ErrAborted
)
