package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is matched by every *MalformedInputError. The stream cannot
	// be resynchronised after one, the connection has to go.
	ErrMalformedInput = errors.New("malformed input")

	// ErrConnectionClosed means the transport ended before a response was complete.
	ErrConnectionClosed = errors.New("connection closed")

	ErrMissingResponse = errors.New("response contained no frame")

	// ErrInvalidCommand is returned for a command that cannot be written as
	// exactly one line.
	ErrInvalidCommand = errors.New("invalid command")
)

// MalformedInputError describes bytes that violate the grammar. Offset and
// Length locate them inside the buffer that was handed to the parser, both are
// zero when the violation was found by the Assembler.
type MalformedInputError struct {
	Offset int
	Length int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input at bytes [%d, %d): %s", e.Offset, e.Offset+e.Length, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(offset, length int, format string, args ...interface{}) error {
	return &MalformedInputError{
		Offset: offset,
		Length: length,
		Reason: fmt.Sprintf(format, args...),
	}
}

// AckError is a rejection of one command (or one item of a command list) by the
// server. It only concerns the request it answers.
type AckError struct {
	Code  int
	Index int

	// Command is the failing command as echoed by the server, empty when the
	// server did not name one.
	Command string
	Message string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("ACK [%d@%d] {%s} %s", e.Code, e.Index, e.Command, e.Message)
}

// Well known ACK codes.
const (
	AckNotList       = 1
	AckArg           = 2
	AckPassword      = 3
	AckPermission    = 4
	AckUnknown       = 5
	AckNoExist       = 50
	AckPlaylistMax   = 51
	AckSystem        = 52
	AckPlaylistLoad  = 53
	AckUpdateAlready = 54
	AckPlayerSync    = 55
	AckExist         = 56
)

// IsAck reports whether err is an AckError with the given code.
func IsAck(err error, code int) bool {
	var ack *AckError
	return errors.As(err, &ack) && ack.Code == code
}
