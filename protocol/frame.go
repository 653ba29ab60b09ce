package protocol

// Field is a single `key: value` line.
type Field struct {
	Key   string
	Value string
}

// Frame is one reply unit. Keys are not unique and their order is kept exactly
// as the server sent them.
type Frame struct {
	Fields []Field

	// Binary is the payload announced by the `binary` field, nil when the frame
	// had none. An announced zero length payload is an empty, non-nil slice. The
	// `binary` field itself stays in Fields.
	Binary []byte
}

// Find returns the value of the first field with the given key.
func (f *Frame) Find(key string) (string, bool) {
	for _, field := range f.Fields {
		if field.Key == key {
			return field.Value, true
		}
	}

	return "", false
}

// All returns the values of every field with the given key, in order.
func (f *Frame) All(key string) []string {
	var values []string

	for _, field := range f.Fields {
		if field.Key == key {
			values = append(values, field.Value)
		}
	}

	return values
}

// HasBinary reports whether the frame carried a binary payload.
func (f *Frame) HasBinary() bool {
	return f.Binary != nil
}

// IsEmpty is true for a frame with no fields and no payload, e.g. the reply to `ping`.
func (f *Frame) IsEmpty() bool {
	return len(f.Fields) == 0 && !f.HasBinary()
}

func (f *Frame) push(key, value string) {
	f.Fields = append(f.Fields, Field{Key: key, Value: value})
}
