// Package scpi drives an RF pulse power sensor through the recommended SCPI
// measurement procedure.
//
// A [Session] exclusively owns one [link.Link]. It resets and clears the
// instrument once ([Session.Initialize]) and then runs measurement cycles
// ([Session.Cycle]) until the operator asks to stop:
//
//	INIT -> *OPC? -> *STB? -> [SYST:ERR? ...] -> [STAT:QUES:COND?] -> FETC:...AVER?
//
// Every query is answered by exactly one reply before the next command is
// sent; the session never pipelines.
//
// # Status Check
//
// After each *OPC? barrier the status byte is read. Bit 2 (error queue not
// empty) causes SYST:ERR? to be queried until the instrument reports code 0,
// so every pending error is drained. Bit 3 (questionable status summary)
// causes STAT:QUES:COND? to be read and decoded into diagnostic notes for
// condition bits 3, 5 and 8. Whether both branches may run in the same
// cycle is selected by [StatusPolicy]; [PolicyExclusive] is the default.
//
// # Errors
//
// Link failures ([link.LinkError]) and unparsable replies ([ProtocolViolation])
// abort the cycle before any value is fetched. Instrument errors and
// questionable conditions are recoverable: they are collected into the
// cycle's [StatusReport] and logged, never returned as errors.
package scpi
