// Package mpdtest runs an in-process daemon for tests.
package mpdtest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/luma/mpdmux/protocol"
)

// Reply is what a Handler answers. A non-zero Ack fails the command. With
// HangUp set the Body is written without a terminator and the connection
// is dropped.
type Reply struct {
	Body   string
	Ack    int
	Msg    string
	HangUp bool
}

type Handler func(args []string) Reply

// Daemon speaks the server side of the protocol over one end of a
// net.Pipe. It keeps a log of every line it read and of every protocol
// violation it noticed.
type Daemon struct {
	conn   net.Conn
	lines  chan string
	notify chan []string
	raw    chan string

	hangupOnce sync.Once
	hangup     chan struct{}
	done       chan struct{}

	mu          sync.Mutex
	handlers    map[string]Handler
	received    []string
	violations  []string
	idling      bool
	idles       int
	pending     []string
	holdChanges bool
	rejectIdle  bool
}

// New starts a daemon and returns it with the client end of its connection.
func New() (*Daemon, net.Conn) {
	server, pipe := net.Pipe()

	d := &Daemon{
		conn:     server,
		lines:    make(chan string, 64),
		notify:   make(chan []string),
		raw:      make(chan string),
		hangup:   make(chan struct{}),
		done:     make(chan struct{}),
		handlers: make(map[string]Handler),
	}

	d.Handle("ping", func([]string) Reply { return Reply{} })
	d.Handle("binarylimit", func([]string) Reply { return Reply{} })

	go d.readLines()
	go d.serve()

	return d, pipe
}

func (d *Daemon) Handle(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[name] = h
}

// Notify reports changed subsystems, answering the idle request if one is open.
func (d *Daemon) Notify(subsystems ...string) {
	select {
	case d.notify <- subsystems:
	case <-d.done:
	}
}

// Send writes raw bytes outside of any request.
func (d *Daemon) Send(raw string) {
	select {
	case d.raw <- raw:
	case <-d.done:
	}
}

// HoldChanges keeps notifications back until the idle request is cancelled,
// as if they had raced with noidle.
func (d *Daemon) HoldChanges() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.holdChanges = true
}

// RejectIdle makes the daemon answer idle with an ACK.
func (d *Daemon) RejectIdle(reject bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rejectIdle = reject
}

// Hungup is closed once Hangup was called.
func (d *Daemon) Hungup() <-chan struct{} {
	return d.hangup
}

func (d *Daemon) Hangup() {
	d.hangupOnce.Do(func() {
		close(d.hangup)
		d.conn.Close()
	})
}

func (d *Daemon) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.received...)
}

func (d *Daemon) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.violations...)
}

func (d *Daemon) Idling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.idling
}

func (d *Daemon) Idles() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.idles
}

func (d *Daemon) readLines() {
	defer close(d.lines)

	scanner := bufio.NewScanner(d.conn)
	for scanner.Scan() {
		d.lines <- scanner.Text()
	}
}

func (d *Daemon) serve() {
	defer close(d.done)
	defer d.conn.Close()

	if !d.write("OK MPD 0.23.5\n") {
		return
	}

	for {
		select {
		case line, ok := <-d.lines:
			if !ok || !d.handleLine(line) {
				return
			}

		case changed := <-d.notify:
			d.mu.Lock()
			d.pending = append(d.pending, changed...)
			d.mu.Unlock()

			if !d.flushIdle() {
				return
			}

		case raw := <-d.raw:
			if !d.write(raw) {
				return
			}

		case <-d.hangup:
			return
		}
	}
}

func (d *Daemon) handleLine(line string) bool {
	d.record(line)
	name, args := split(line)

	d.mu.Lock()
	idling := d.idling
	d.mu.Unlock()

	if idling {
		if name != "noidle" {
			// The real daemon drops the connection here.
			d.violate("%q while idling", line)
			return false
		}

		d.mu.Lock()
		body := changedLines(d.pending)
		d.pending = nil
		d.idling = false
		d.mu.Unlock()

		return d.write(body + "OK\n")
	}

	switch name {
	case "noidle":
		// Ignored when not idling.
		return true

	case "idle":
		d.mu.Lock()
		d.idles++
		reject := d.rejectIdle
		d.idling = !reject
		d.mu.Unlock()

		if reject {
			return d.write(ackLine(protocol.AckArg, 0, "idle", "Unrecognized idle event"))
		}

		return d.flushIdle()

	case "command_list_ok_begin":
		return d.handleList()
	}

	r := d.lookup(name)(args)
	d.checkPipelined(line)

	if r.HangUp {
		d.write(r.Body)
		return false
	}

	if r.Ack != 0 {
		return d.write(ackLine(r.Ack, 0, name, r.Msg))
	}

	return d.write(r.Body + "OK\n")
}

func (d *Daemon) handleList() bool {
	var cmds []string

	for line := range d.lines {
		d.record(line)

		if line == "command_list_end" {
			d.checkPipelined(line)

			var out strings.Builder

			for i, cmd := range cmds {
				name, args := split(cmd)

				r := d.lookup(name)(args)
				if r.Ack != 0 {
					out.WriteString(ackLine(r.Ack, i, name, r.Msg))
					return d.write(out.String())
				}

				out.WriteString(r.Body + "list_OK\n")
			}

			out.WriteString("OK\n")

			return d.write(out.String())
		}

		cmds = append(cmds, line)
	}

	return false
}

// checkPipelined flags a client that wrote again before reading the reply.
func (d *Daemon) checkPipelined(line string) {
	if len(d.lines) > 0 {
		d.violate("%q was followed by another request before its reply", line)
	}
}

func (d *Daemon) flushIdle() bool {
	d.mu.Lock()

	if !d.idling || d.holdChanges || len(d.pending) == 0 {
		d.mu.Unlock()
		return true
	}

	body := changedLines(d.pending)
	d.pending = nil
	d.idling = false
	d.mu.Unlock()

	return d.write(body + "OK\n")
}

func (d *Daemon) lookup(name string) Handler {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h, ok := d.handlers[name]; ok {
		return h
	}

	return func([]string) Reply {
		return Reply{Ack: protocol.AckUnknown, Msg: fmt.Sprintf("unknown command %q", name)}
	}
}

func (d *Daemon) record(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.received = append(d.received, line)
}

func (d *Daemon) violate(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Daemon) write(s string) bool {
	_, err := io.WriteString(d.conn, s)
	return err == nil
}

func changedLines(subsystems []string) string {
	var b strings.Builder
	for _, s := range subsystems {
		b.WriteString("changed: " + s + "\n")
	}

	return b.String()
}

func ackLine(code, index int, command, msg string) string {
	return fmt.Sprintf("ACK [%d@%d] {%s} %s\n", code, index, command, msg)
}

// BinaryBody renders a chunk the way albumart and readpicture answer.
func BinaryBody(size int, mime string, chunk []byte) string {
	return fmt.Sprintf("size: %d\ntype: %s\nbinary: %d\n%s\n", size, mime, len(chunk), chunk)
}

// split undoes the argument quoting of the client.
func split(line string) (string, []string) {
	var (
		tokens  []string
		cur     strings.Builder
		quoted  bool
		escaped bool
		inToken bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]

		switch {
		case escaped:
			cur.WriteByte(ch)
			escaped = false
		case quoted && ch == '\\':
			escaped = true
		case ch == '"':
			quoted = !quoted
			inToken = true
		case ch == ' ' && !quoted:
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteByte(ch)
			inToken = true
		}
	}

	if inToken {
		tokens = append(tokens, cur.String())
	}

	if len(tokens) == 0 {
		return "", nil
	}

	return tokens[0], tokens[1:]
}
