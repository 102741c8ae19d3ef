package netx

import "time"

// UDPSocket is a datagram socket. Its lifecycle is the port binding itself:
// bind, exchange datagrams, unbind.
type UDPSocket struct {
	binding
	stack *Stack
}

// NewUDPSocket creates an unbound datagram socket on s.
func NewUDPSocket(s *Stack) *UDPSocket {
	return &UDPSocket{stack: s}
}

// Bind claims port for u, or an ephemeral port if port is PortAny. If the
// port is held by another socket and timeout is nonzero, Bind suspends until
// the holder unbinds or the timeout elapses; waiters are served oldest first.
func (u *UDPSocket) Bind(port uint16, timeout time.Duration) error {
	return u.stack.bindPort(&u.stack.udpPorts, &u.binding, port, timeout)
}

// Unbind releases u's port, handing it to the oldest bind waiter if any.
func (u *UDPSocket) Unbind() error {
	return u.stack.unbindPort(&u.stack.udpPorts, &u.binding)
}

// Port returns the bound local port, or zero if unbound.
func (u *UDPSocket) Port() uint16 {
	u.stack.mu.Lock()
	defer u.stack.mu.Unlock()
	if !u.bound() {
		return 0
	}
	return u.port
}
