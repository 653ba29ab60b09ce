package protocol

// Response is everything the server replied to one Request.
//
// When Err is set the frames are those of the list items that succeeded
// before the failing one. Nothing after the failure exists.
type Response struct {
	Frames []Frame
	Err    *AckError
}

// ErrorOrNil returns an error if the response contains an error. Otherwise it
// returns nil.
func (r *Response) ErrorOrNil() error {
	if r.Err != nil {
		return r.Err
	}

	return nil
}

// Frame returns the single frame of a successful plain command.
func (r *Response) Frame() (*Frame, error) {
	if err := r.ErrorOrNil(); err != nil {
		return nil, err
	}

	if len(r.Frames) == 0 {
		return nil, ErrMissingResponse
	}

	return &r.Frames[0], nil
}
