/*
package netx implements the transport core of an embedded TCP/IP stack: the
active-open half of the TCP state machine, a hash-bucketed port registry with
cooperative blocking on contended ports, composition of outgoing control
segments, and IGMP group membership reporting.

The slice of the TCP state diagram (RFC 9293) this core drives:

	+---------+ ---------\      active OPEN
	|  CLOSED |            \    -----------
	+---------+<---------\   \   snd SYN
	      ^                \   \
	      | abort/timeout    \   \
	      |                    \   V
	+---------+               +---------+
	|  ESTAB  |<--------------|   SYN   |
	+---------+  rcv SYN,ACK  |   SENT  |
	              snd ACK     +---------+

Everything else (passive open, data transfer, teardown) belongs to receive
processing and the application socket layer, which sit outside this module
and drive it through [TCPSocket.FinishConnect] and the [Sender] and [Router]
collaborator interfaces.

# Locking

A Stack serializes whole operations (connect, bind) with one coarse mutex
that is always released before a caller suspends or returns. The pointer
surgery on port rings and the connection fields that receive processing may
touch are additionally guarded by fine-grained locks so that contexts which
never take the coarse lock still observe consistent state.
*/
package netx
