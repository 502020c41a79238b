package link

import (
	"errors"
	"fmt"
)

var (
	// ErrLinkWrite matches every *LinkError raised while sending a command.
	ErrLinkWrite = errors.New("link: write failed")

	// ErrLinkRead matches every *LinkError raised while receiving a reply.
	ErrLinkRead = errors.New("link: read failed")

	// ErrLinkClosed indicates that the link was used after Close.
	ErrLinkClosed = errors.New("link: connection closed")

	// ErrEmbeddedTerminator indicates a command that contains a line terminator.
	ErrEmbeddedTerminator = errors.New("link: command contains a line terminator")

	// ErrInvalidEncoding indicates a reply that is not valid UTF-8 text.
	ErrInvalidEncoding = errors.New("link: reply is not valid UTF-8")

	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("link: connection config is nil")
)

// Op identifies the direction of a failed link operation.
type Op string

const (
	OpWrite Op = "write"
	OpRead  Op = "read"
)

// LinkError reports a failure of the underlying stream.
//
// Link errors are fatal to a measurement session. Use errors.Is with
// ErrLinkWrite or ErrLinkRead to tell the direction apart.
type LinkError struct {
	Op Op
	// Command is the command being sent, empty for reads.
	Command string
	Err     error
}

func (e *LinkError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("link: %s %q: %v", e.Op, e.Command, e.Err)
	}

	return fmt.Sprintf("link: %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the direction sentinel of this error.
func (e *LinkError) Is(target error) bool {
	switch target {
	case ErrLinkWrite:
		return e.Op == OpWrite
	case ErrLinkRead:
		return e.Op == OpRead
	}

	return false
}

func writeError(cmd string, err error) *LinkError {
	return &LinkError{Op: OpWrite, Command: cmd, Err: err}
}

func readError(err error) *LinkError {
	return &LinkError{Op: OpRead, Err: err}
}
