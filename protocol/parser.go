package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultMaxLine bounds how much the parser buffers while waiting for a newline.
	DefaultMaxLine = 1 << 20

	// DefaultMaxBinary bounds the length a `binary` field may announce.
	DefaultMaxBinary = 64 << 20
)

var (
	lineOK       = []byte("OK")
	lineListOK   = []byte("list_OK")
	prefixOK     = []byte("OK ")
	prefixAck    = []byte("ACK ")
	prefixBinary = []byte(BinaryKey + ": ")
)

// Limits constrains parser memory use.
type Limits struct {
	MaxLine   int
	MaxBinary int
}

func DefaultLimits() Limits {
	return Limits{
		MaxLine:   DefaultMaxLine,
		MaxBinary: DefaultMaxBinary,
	}
}

// Greeting is the first line a server sends on a new connection.
type Greeting struct {
	Name    string
	Version string
}

// Parsed is one completed frame together with the line that ended it.
type Parsed struct {
	Frame Frame
	End   Terminator

	// Ack is set when End is EndAck.
	Ack *AckError
}

// Parser incrementally decodes server replies. It never performs I/O: the
// caller appends whatever it read to a buffer, calls Parse, and drops the
// consumed prefix of the buffer before reading again.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	limits  Limits
	pending Frame
	started bool
}

func NewParser(limits Limits) *Parser {
	defaults := DefaultLimits()

	if limits.MaxLine <= 0 {
		limits.MaxLine = defaults.MaxLine
	}

	if limits.MaxBinary <= 0 {
		limits.MaxBinary = defaults.MaxBinary
	}

	return &Parser{limits: limits}
}

// ReadGreeting parses the connection greeting `OK <name> <version>`. It returns
// a nil Greeting and no error when buf does not hold a full line yet.
func (p *Parser) ReadGreeting(buf []byte) (*Greeting, int, error) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		if len(buf) > p.limits.MaxLine {
			return nil, 0, malformed(0, len(buf), "greeting exceeds %d bytes", p.limits.MaxLine)
		}

		return nil, 0, nil
	}

	line := buf[:i]
	if !bytes.HasPrefix(line, prefixOK) {
		return nil, 0, malformed(0, i, "invalid greeting %q", line)
	}

	parts := strings.Fields(string(line[len(prefixOK):]))
	if len(parts) != 2 {
		return nil, 0, malformed(0, i, "invalid greeting %q", line)
	}

	return &Greeting{Name: parts[0], Version: parts[1]}, i + 1, nil
}

// InProgress reports whether part of a frame has been consumed already.
func (p *Parser) InProgress() bool {
	return p.started
}

// Parse consumes complete lines from buf. It returns the finished frame, if
// any, and the number of bytes that were consumed. Field lines are consumed as
// soon as they are complete, so n may be positive while the frame is nil.
//
// A `binary` header is only consumed together with its payload and the
// trailing newline.
//
// Any error is a *MalformedInputError and leaves the parser unusable.
func (p *Parser) Parse(buf []byte) (parsed *Parsed, n int, err error) {
	off := 0

	for {
		rest := buf[off:]

		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			if len(rest) > p.limits.MaxLine {
				return nil, off, malformed(off, len(rest), "line exceeds %d bytes", p.limits.MaxLine)
			}

			return nil, off, nil
		}

		if i > p.limits.MaxLine {
			return nil, off, malformed(off, i, "line exceeds %d bytes", p.limits.MaxLine)
		}

		line := rest[:i]
		next := off + i + 1

		switch {
		case bytes.Equal(line, lineOK):
			return p.finish(EndOK, nil), next, nil

		case bytes.Equal(line, lineListOK):
			return p.finish(EndListOK, nil), next, nil

		case bytes.HasPrefix(line, prefixAck):
			ack, err := parseAck(line)
			if err != nil {
				return nil, off, malformed(off, i, "%v in %q", err, line)
			}

			return p.finish(EndAck, ack), next, nil

		case bytes.HasPrefix(line, prefixBinary):
			length, err := p.binaryLength(line[len(prefixBinary):])
			if err != nil {
				return nil, off, malformed(off, i, "%v", err)
			}

			if p.pending.Binary != nil {
				return nil, off, malformed(off, i, "second binary section in one frame")
			}

			end := next + length
			if len(buf) <= end {
				// Wait for the payload and its newline before consuming the header.
				return nil, off, nil
			}

			if buf[end] != '\n' {
				return nil, off, malformed(end, 1, "binary payload of %d bytes is not followed by a newline", length)
			}

			p.pending.push(BinaryKey, strconv.Itoa(length))
			p.pending.Binary = append(make([]byte, 0, length), buf[next:end]...)
			p.started = true
			off = end + 1

		default:
			key, value, err := parseField(line)
			if err != nil {
				return nil, off, malformed(off, i, "%v in %q", err, line)
			}

			p.pending.push(key, value)
			p.started = true
			off = next
		}
	}
}

func (p *Parser) finish(end Terminator, ack *AckError) *Parsed {
	parsed := &Parsed{Frame: p.pending, End: end, Ack: ack}

	p.pending = Frame{}
	p.started = false

	return parsed
}

func (p *Parser) binaryLength(raw []byte) (int, error) {
	length, err := strconv.ParseUint(string(raw), 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid binary length %q", raw)
	}

	if length > uint64(p.limits.MaxBinary) {
		return 0, fmt.Errorf("binary length %d exceeds limit of %d bytes", length, p.limits.MaxBinary)
	}

	return int(length), nil
}

func parseField(line []byte) (string, string, error) {
	sep := bytes.IndexByte(line, ':')
	if sep < 0 {
		return "", "", errors.New("missing field separator")
	}

	key := line[:sep]
	if len(key) == 0 {
		return "", "", errors.New("empty field name")
	}

	for _, b := range key {
		if !isKeyByte(b) {
			return "", "", fmt.Errorf("invalid byte %q in field name", b)
		}
	}

	value := line[sep+1:]
	if len(value) > 0 {
		if value[0] != ' ' {
			return "", "", errors.New("missing space after field separator")
		}

		value = value[1:]
	}

	return string(key), string(value), nil
}

func isKeyByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_' || b == '-'
}

// parseAck parses `ACK [<code>@<index>] {<command>} <message>`.
func parseAck(line []byte) (*AckError, error) {
	rest := line[len(prefixAck):]

	if len(rest) == 0 || rest[0] != '[' {
		return nil, errors.New("missing error code")
	}

	closing := bytes.IndexByte(rest, ']')
	if closing < 0 {
		return nil, errors.New("unterminated error code")
	}

	rawCode, rawIndex, ok := bytes.Cut(rest[1:closing], []byte("@"))
	if !ok {
		return nil, errors.New("missing command index")
	}

	code, err := strconv.ParseUint(string(rawCode), 10, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid error code %q", rawCode)
	}

	index, err := strconv.ParseUint(string(rawIndex), 10, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid command index %q", rawIndex)
	}

	rest = rest[closing+1:]
	if !bytes.HasPrefix(rest, []byte(" {")) {
		return nil, errors.New("missing current command")
	}

	closing = bytes.IndexByte(rest, '}')
	if closing < 0 {
		return nil, errors.New("unterminated current command")
	}

	command := rest[2:closing]
	message := rest[closing+1:]

	if len(message) > 0 {
		if message[0] != ' ' {
			return nil, errors.New("missing space before message")
		}

		message = message[1:]
	}

	return &AckError{
		Code:    int(code),
		Index:   int(index),
		Command: string(command),
		Message: string(message),
	}, nil
}
