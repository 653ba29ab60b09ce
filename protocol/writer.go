package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Command is a single command line. Args are escaped when the command is rendered.
type Command struct {
	Name string
	Args []string
}

func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command without its trailing newline.
func (c Command) String() string {
	var b strings.Builder
	c.render(&b)
	return b.String()
}

// Validate checks that the command renders as a single line. Names are made of
// letters, digits and underscores, arguments may not contain line breaks.
func (c Command) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}

	for i := 0; i < len(c.Name); i++ {
		if !isNameByte(c.Name[i]) {
			return fmt.Errorf("%w: invalid character %q at %d in name %q", ErrInvalidCommand, c.Name[i], i, c.Name)
		}
	}

	for i, arg := range c.Args {
		if strings.ContainsAny(arg, "\r\n") {
			return fmt.Errorf("%w: line break in argument %d of %s", ErrInvalidCommand, i, c.Name)
		}
	}

	return nil
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_'
}

func (c Command) render(b *strings.Builder) {
	b.WriteString(c.Name)

	for _, arg := range c.Args {
		b.WriteByte(' ')
		b.WriteString(Escape(arg))
	}
}

// Escape returns arg in a form the server reads back as one argument. Safe
// arguments are returned unchanged, everything else is double quoted with
// embedded quotes and backslashes escaped.
func Escape(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\r\n\"\\") {
		return arg
	}

	var b strings.Builder
	b.Grow(len(arg) + 2)
	b.WriteByte('"')

	for i := 0; i < len(arg); i++ {
		if arg[i] == '"' || arg[i] == '\\' {
			b.WriteByte('\\')
		}

		b.WriteByte(arg[i])
	}

	b.WriteByte('"')

	return b.String()
}

// Request is the rendered wire text of one command or one command list. It is
// what the connection writes in a single round trip.
type Request struct {
	Data []byte

	// List is set when the server will answer with one frame per command.
	List bool

	err error
}

// Err is set when one of the commands failed Validate. Such a request has no
// Data and is never written.
func (r Request) Err() error {
	return r.err
}

func NewRequest(cmd Command) Request {
	if err := cmd.Validate(); err != nil {
		return Request{err: err}
	}

	var b strings.Builder
	cmd.render(&b)
	b.WriteByte('\n')

	return Request{Data: []byte(b.String())}
}

// NewListRequest wraps cmds in command_list_ok_begin / command_list_end so
// that every item is answered with its own list_OK. An empty list still
// renders both markers.
func NewListRequest(cmds ...Command) Request {
	for i, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			return Request{List: true, err: fmt.Errorf("command %d: %w", i, err)}
		}
	}

	var b strings.Builder

	b.WriteString(CmdListBegin)
	b.WriteByte('\n')

	for _, cmd := range cmds {
		cmd.render(&b)
		b.WriteByte('\n')
	}

	b.WriteString(CmdListEnd)
	b.WriteByte('\n')

	return Request{Data: []byte(b.String()), List: true}
}

// String returns the request text with newlines shown as `; `, for logging.
func (r Request) String() string {
	return string(bytes.ReplaceAll(bytes.TrimSuffix(r.Data, []byte("\n")), []byte("\n"), []byte("; ")))
}

func WriteCommand(w io.Writer, cmd Command) error {
	return writeRequest(w, NewRequest(cmd))
}

func WriteCommandList(w io.Writer, cmds ...Command) error {
	return writeRequest(w, NewListRequest(cmds...))
}

func writeRequest(w io.Writer, req Request) error {
	if req.err != nil {
		return req.err
	}

	_, err := w.Write(req.Data)
	return err
}
