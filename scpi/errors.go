package scpi

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation matches every *ProtocolViolation.
	ErrProtocolViolation = errors.New("scpi: protocol violation")

	// ErrEmptyReply indicates an empty reply where content was required.
	ErrEmptyReply = errors.New("scpi: empty reply")

	// ErrDrainLimit indicates that SYST:ERR? kept reporting errors beyond the configured limit.
	ErrDrainLimit = errors.New("scpi: error queue drain limit exceeded")

	// ErrLinkNil indicates that a session was created without a link.
	ErrLinkNil = errors.New("scpi: link is nil")

	// ErrNotInitialized indicates a measurement cycle before Initialize.
	ErrNotInitialized = errors.New("scpi: session is not initialized")

	// ErrUnknownQuantity indicates a fetch of an unsupported quantity.
	ErrUnknownQuantity = errors.New("scpi: unknown quantity")

	// ErrSelectorNil indicates a measurement cycle without a selector.
	ErrSelectorNil = errors.New("scpi: selector is nil")
)

// ProtocolViolation reports a reply that could not be interpreted as the
// value the query requires. It is fatal: the session never substitutes a
// default for a malformed reply.
type ProtocolViolation struct {
	Command string
	Reply   string
	Err     error
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("scpi: protocol violation: %s replied %q: %v", e.Command, e.Reply, e.Err)
}

func (e *ProtocolViolation) Unwrap() error {
	return e.Err
}

func (e *ProtocolViolation) Is(target error) bool {
	return target == ErrProtocolViolation
}

// InstrumentError is one entry of the instrument error queue as returned by
// SYST:ERR?. Instrument errors are drained and reported, not returned.
type InstrumentError struct {
	Code    int
	Message string
}

func (e InstrumentError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("scpi: instrument error %d", e.Code)
	}

	return fmt.Sprintf("scpi: instrument error %d: %s", e.Code, e.Message)
}

// QuestionableCondition is an advisory diagnostic decoded from the
// questionable condition register.
type QuestionableCondition struct {
	Bit  uint
	Note string
}

func (c QuestionableCondition) String() string {
	return "Note: " + c.Note
}
