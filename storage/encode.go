package storage

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/mpdmux/protocol"
)

// EncodeFrame turns a frame into a JSON object. A key that occurs more than
// once becomes an array of its values in order. Binary payloads are left out,
// the `binary` field with the length is kept.
func EncodeFrame(frame *protocol.Frame) ([]byte, error) {
	doc := []byte("{}")

	for _, field := range frame.Fields {
		path := escapePath(field.Key)
		existing := gjson.GetBytes(doc, path)

		var err error

		switch {
		case !existing.Exists():
			doc, err = sjson.SetBytes(doc, path, field.Value)
		case existing.IsArray():
			doc, err = sjson.SetBytes(doc, path+".-1", field.Value)
		default:
			doc, err = sjson.SetBytes(doc, path, []string{existing.String(), field.Value})
		}

		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// EncodeFrames encodes each frame and returns them as a JSON array.
func EncodeFrames(frames []protocol.Frame) ([]byte, error) {
	doc := []byte("[]")

	for i := range frames {
		encoded, err := EncodeFrame(&frames[i])
		if err != nil {
			return nil, err
		}

		if doc, err = sjson.SetRawBytes(doc, "-1", encoded); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// escapePath quotes the characters gjson and sjson treat as path syntax.
func escapePath(key string) string {
	var escaped []byte

	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			escaped = append(escaped, '\\')
		}

		escaped = append(escaped, key[i])
	}

	return string(escaped)
}
