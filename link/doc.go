// Package link provides the transport link used to reach a SCPI instrument
// through a TCP-to-serial bridge.
//
// A Link carries text commands and replies and nothing more: it has no
// knowledge of instrument semantics. Every Send transmits one command line
// terminated with a single "\n", and every Receive blocks until one reply
// line has arrived.
//
// # Reply Size
//
// Receive reads into a bounded buffer (1024 bytes by default, see
// [WithReadBufferSize]). A reply longer than the buffer is returned truncated
// and the remainder stays on the wire, where the next Receive would pick it
// up. All replies of the pulse sensor fit comfortably within the default.
//
// # Blocking and Deadlines
//
// Reads are unbounded by default: a measurement synchronised with *OPC? may
// legitimately take as long as the instrument needs. Callers that want a
// deadline or cancellation wrap the link with [WithContext], which drives
// the connection's read deadline from a context without the caller of
// Receive knowing about time at all.
package link
