package protocol

import "fmt"

// Assembler folds the frames answering one Request into a Response.
type Assembler struct {
	list   bool
	frames []Frame
}

// NewAssembler returns an assembler for a plain command or, when list is set,
// for a command list opened with command_list_ok_begin.
func NewAssembler(list bool) *Assembler {
	return &Assembler{list: list}
}

// Push adds one parsed frame. It returns the Response once the request has been
// fully answered and nil while more frames are expected.
//
// A terminator that cannot occur for this kind of request is reported as
// malformed input.
func (a *Assembler) Push(p *Parsed) (*Response, error) {
	switch p.End {
	case EndAck:
		// Fields that preceded the ACK belong to the failed item and are dropped.
		return a.finish(p.Ack), nil

	case EndListOK:
		if !a.list {
			return nil, malformed(0, 0, "list_OK in reply to a plain command")
		}

		a.frames = append(a.frames, p.Frame)
		return nil, nil

	case EndOK:
		if a.list {
			if !p.Frame.IsEmpty() {
				return nil, malformed(0, 0, "%d fields after the last list_OK", len(p.Frame.Fields))
			}

			return a.finish(nil), nil
		}

		a.frames = append(a.frames, p.Frame)
		return a.finish(nil), nil

	default:
		return nil, malformed(0, 0, "unknown terminator %v", p.End)
	}
}

// Abort is called when the transport went away before the response finished.
// It returns the error every waiter on this request should see.
func (a *Assembler) Abort() error {
	if len(a.frames) == 0 {
		return ErrConnectionClosed
	}

	return fmt.Errorf("%w after %d of the frames were received", ErrConnectionClosed, len(a.frames))
}

func (a *Assembler) finish(ack *AckError) *Response {
	resp := &Response{Frames: a.frames, Err: ack}
	a.frames = nil
	return resp
}
