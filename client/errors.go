package client

import (
	"errors"

	"github.com/luma/mpdmux/protocol"
)

var (
	// ErrConnectionClosed is matched by every *ConnectionClosedError.
	ErrConnectionClosed = protocol.ErrConnectionClosed

	// ErrChunkInconsistency means the resource changed while it was being
	// fetched: a chunk announced a different total size or ran past it.
	ErrChunkInconsistency = errors.New("binary chunks are inconsistent")

	// ErrNoProgress means a chunk carried no data before the announced total
	// size was reached.
	ErrNoProgress = errors.New("binary transfer made no progress")

	// ErrNoPayload means the server has no data for the requested resource.
	ErrNoPayload = errors.New("resource has no binary payload")

	errClosedLocally = errors.New("closed by client")
)

// ConnectionClosedError is returned to every caller whose request could not be
// answered because the connection is gone.
type ConnectionClosedError struct {
	// Cause is what ended the connection: a transport error, io.EOF, a
	// *protocol.MalformedInputError or a local Close.
	Cause error
}

func (e *ConnectionClosedError) Error() string {
	if e.Cause == nil {
		return ErrConnectionClosed.Error()
	}

	return ErrConnectionClosed.Error() + ": " + e.Cause.Error()
}

func (e *ConnectionClosedError) Unwrap() error {
	return e.Cause
}

func (e *ConnectionClosedError) Is(target error) bool {
	return target == ErrConnectionClosed
}
