package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/protocol"
)

var noidleRequest = protocol.NewRequest(protocol.NewCommand(protocol.CmdNoIdle))

type result struct {
	resp *protocol.Response
	err  error
}

// envelope is one caller's request on its way through the loop. reply has
// room for exactly one result so the loop never waits on a caller.
type envelope struct {
	ctx   context.Context
	req   protocol.Request
	reply chan result
}

func (e *envelope) respond(resp *protocol.Response, err error) {
	e.reply <- result{resp: resp, err: err}
}

type chunk struct {
	data []byte
	err  error
}

// Conn shares one daemon connection between any number of goroutines. A single
// loop goroutine owns the transport: it writes one request at a time, matches
// every reply to its caller and, whenever nothing is queued, keeps an idle
// request outstanding to learn about changes.
type Conn struct {
	rwc      io.ReadWriteCloser
	opts     Options
	log      *zap.Logger
	greeting protocol.Greeting

	state atomic.Int32

	submit      chan *envelope
	subscribe   chan *Subscription
	unsubscribe chan *Subscription
	reads       chan chunk

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}

	// err is written once, before done is closed.
	err error

	// Owned by the loop goroutine.
	parser       *protocol.Parser
	buf          []byte
	backlog      *queue.Queue
	current      *envelope
	asm          *protocol.Assembler
	subscribers  map[*Subscription]struct{}
	watchRequest protocol.Request
	watchAt      <-chan time.Time
	watchFailed  bool
}

// Connect takes ownership of rwc. It reads the greeting, starts the connection
// loop and then authenticates and sets the binary limit if opts ask for it.
//
// ctx bounds the setup only. Close the returned Conn to release rwc.
func Connect(ctx context.Context, rwc io.ReadWriteCloser, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	watchArgs := make([]string, len(opts.WatchSubsystems))
	for i, s := range opts.WatchSubsystems {
		watchArgs[i] = string(s)
	}

	c := &Conn{
		rwc:          rwc,
		opts:         opts,
		log:          opts.Log.Named("conn"),
		submit:       make(chan *envelope),
		subscribe:    make(chan *Subscription),
		unsubscribe:  make(chan *Subscription),
		reads:        make(chan chunk, 4),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		parser:       protocol.NewParser(opts.Limits),
		backlog:      queue.New(),
		subscribers:  make(map[*Subscription]struct{}),
		watchRequest: protocol.NewRequest(protocol.NewCommand(protocol.CmdIdle, watchArgs...)),
	}

	if err := c.readGreeting(ctx); err != nil {
		rwc.Close()
		return nil, err
	}

	c.log.Debug("Connected",
		zap.String("server", c.greeting.Name),
		zap.String("version", c.greeting.Version),
	)

	go c.readLoop()
	go c.loop()

	if err := c.bootstrap(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Conn) readGreeting(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.rwc.Close()
	})

	err := c.waitForGreeting()

	if !stop() {
		return fmt.Errorf("reading greeting: %w", ctx.Err())
	}

	return err
}

func (c *Conn) waitForGreeting() error {
	buf := make([]byte, readBufferSize)

	for {
		greeting, n, err := c.parser.ReadGreeting(c.buf)
		if err != nil {
			return err
		}

		if greeting != nil {
			c.greeting = *greeting
			c.buf = c.buf[n:]
			return nil
		}

		read, err := c.rwc.Read(buf)
		c.buf = append(c.buf, buf[:read]...)

		if err != nil {
			return fmt.Errorf("reading greeting: %w", err)
		}
	}
}

func (c *Conn) bootstrap(ctx context.Context) error {
	if c.opts.Password != "" {
		if _, err := c.Command(ctx, protocol.NewCommand(protocol.CmdPassword, c.opts.Password)); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if c.opts.BinaryLimit > 0 {
		_, err := c.Command(ctx, protocol.NewCommand(protocol.CmdBinaryLimit, strconv.Itoa(c.opts.BinaryLimit)))

		switch {
		case protocol.IsAck(err, protocol.AckUnknown):
			c.log.Warn("Server does not support binarylimit", zap.Error(err))
		case err != nil:
			return fmt.Errorf("setting binary limit: %w", err)
		}
	}

	return nil
}

// Greeting returns what the server announced itself as.
func (c *Conn) Greeting() protocol.Greeting {
	return c.greeting
}

// State never blocks.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Done is closed once the connection has shut down and every caller and
// subscriber has been told.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection closed, or nil while it is active.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close shuts the connection down and waits until that is complete.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)

		// Unblocks a loop stuck writing to a peer that stopped reading.
		c.rwc.Close()
	})

	<-c.done

	return nil
}

// Submit queues req behind every request submitted before it and waits for the
// reply. A request that failed validation is refused without touching the
// connection. An ACK is returned inside the Response, not as the error. If ctx ends
// first Submit returns its error; a request that was already written still
// completes on the wire.
func (c *Conn) Submit(ctx context.Context, req protocol.Request) (*protocol.Response, error) {
	if err := req.Err(); err != nil {
		return nil, err
	}

	if c.State() == StateClosed {
		return nil, c.closedError()
	}

	env := &envelope{ctx: ctx, req: req, reply: make(chan result, 1)}

	select {
	case c.submit <- env:
	case <-c.done:
		return nil, c.closedError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-env.reply:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Command runs a single command and returns its frame. An ACK is returned as
// a *protocol.AckError.
func (c *Conn) Command(ctx context.Context, cmd protocol.Command) (*protocol.Frame, error) {
	resp, err := c.Submit(ctx, protocol.NewRequest(cmd))
	if err != nil {
		return nil, err
	}

	return resp.Frame()
}

// CommandList runs cmds as one command list. When an item fails the frames of
// the items before it are returned along with the *protocol.AckError.
func (c *Conn) CommandList(ctx context.Context, cmds ...protocol.Command) ([]protocol.Frame, error) {
	resp, err := c.Submit(ctx, protocol.NewListRequest(cmds...))
	if err != nil {
		return nil, err
	}

	return resp.Frames, resp.ErrorOrNil()
}

// Subscribe registers for change events. The subscription lives until it is
// closed or the connection goes away.
func (c *Conn) Subscribe(opts ...SubscribeOption) (*Subscription, error) {
	if c.State() == StateClosed {
		return nil, c.closedError()
	}

	sub := &Subscription{conn: c, size: c.opts.SubscriberBuffer}
	for _, opt := range opts {
		opt(sub)
	}

	sub.events = make(chan Event, sub.size)

	select {
	case c.subscribe <- sub:
		return sub, nil
	case <-c.done:
		return nil, c.closedError()
	}
}

func (c *Conn) closedError() error {
	<-c.done
	return &ConnectionClosedError{Cause: c.err}
}

func (c *Conn) readLoop() {
	log := c.log.Named("reader")
	buf := make([]byte, readBufferSize)

	for {
		n, err := c.rwc.Read(buf)

		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			if !c.forward(chunk{data: data}) {
				return
			}
		}

		if err != nil {
			log.Debug("Read failed", zap.Error(err))
			c.forward(chunk{err: err})
			return
		}
	}
}

func (c *Conn) forward(ch chunk) bool {
	select {
	case c.reads <- ch:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) loop() {
	log := c.log.Named("loop")

	c.armWatch()

	err := c.run()

	select {
	case <-c.closing:
		err = errClosedLocally
	default:
	}

	c.shutdown(err, log)
}

func (c *Conn) run() error {
	if len(c.buf) > 0 {
		if err := c.process(); err != nil {
			return err
		}
	}

	for {
		select {
		case env := <-c.submit:
			if err := c.enqueue(env); err != nil {
				return err
			}

		case sub := <-c.subscribe:
			c.subscribers[sub] = struct{}{}

		case sub := <-c.unsubscribe:
			if _, ok := c.subscribers[sub]; ok {
				delete(c.subscribers, sub)
				close(sub.events)
			}

		case ch := <-c.reads:
			if ch.err != nil {
				return c.readFailed(ch.err)
			}

			c.buf = append(c.buf, ch.data...)

			if err := c.process(); err != nil {
				return err
			}

		case <-c.watchAt:
			c.watchAt = nil

			if err := c.startWatch(); err != nil {
				return err
			}

		case <-c.closing:
			return errClosedLocally
		}
	}
}

// readFailed turns an end of stream in the middle of a frame into malformed
// input.
func (c *Conn) readFailed(err error) error {
	if errors.Is(err, io.EOF) && (c.parser.InProgress() || len(c.buf) > 0) {
		return &protocol.MalformedInputError{
			Length: len(c.buf),
			Reason: "stream ended inside a frame",
		}
	}

	return err
}

func (c *Conn) enqueue(env *envelope) error {
	c.backlog.Add(env)

	switch c.State() {
	case StateIdle:
		c.watchAt = nil
		return c.dispatch()

	case StateAwaitingWatch:
		c.setState(StateCancellingWatch)
		return c.write(noidleRequest.Data)
	}

	return nil
}

// dispatch writes the next queued request whose caller is still waiting. With
// nothing left to send the connection goes idle and the watch timer starts.
func (c *Conn) dispatch() error {
	for c.backlog.Length() > 0 {
		env := c.backlog.Remove().(*envelope)

		if err := env.ctx.Err(); err != nil {
			env.respond(nil, err)
			continue
		}

		c.current = env
		c.asm = protocol.NewAssembler(env.req.List)
		c.setState(StateAwaitingCommand)

		c.log.Debug("Sending request",
			zap.Bool("list", env.req.List),
			zap.Int("queued", c.backlog.Length()),
		)

		return c.write(env.req.Data)
	}

	c.current = nil
	c.asm = nil
	c.setState(StateIdle)

	if !c.watchFailed {
		c.armWatch()
	}

	return nil
}

func (c *Conn) armWatch() {
	if c.opts.WatchDelay > 0 {
		c.watchAt = time.After(c.opts.WatchDelay)
	}
}

func (c *Conn) startWatch() error {
	if c.State() != StateIdle || c.backlog.Length() > 0 {
		return nil
	}

	c.asm = protocol.NewAssembler(false)
	c.setState(StateAwaitingWatch)

	return c.write(c.watchRequest.Data)
}

func (c *Conn) write(data []byte) error {
	if _, err := c.rwc.Write(data); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	return nil
}

// process parses everything buffered and routes finished responses.
func (c *Conn) process() error {
	for len(c.buf) > 0 {
		state := c.State()
		if state == StateIdle {
			return &protocol.MalformedInputError{
				Length: len(c.buf),
				Reason: "unsolicited data with no request in flight",
			}
		}

		parsed, n, err := c.parser.Parse(c.buf)
		c.buf = c.buf[n:]

		if err != nil {
			return err
		}

		if parsed == nil {
			break
		}

		resp, err := c.asm.Push(parsed)
		if err != nil {
			return err
		}

		if resp == nil {
			continue
		}

		if err := c.route(state, resp); err != nil {
			return err
		}
	}

	if len(c.buf) == 0 {
		c.buf = nil
	}

	return nil
}

func (c *Conn) route(state State, resp *protocol.Response) error {
	switch state {
	case StateAwaitingCommand:
		c.current.respond(resp, nil)
		c.watchFailed = false
		return c.dispatch()

	case StateAwaitingWatch:
		if resp.Err != nil {
			// Not retried until the next command has gone through.
			c.log.Warn("Watch rejected", zap.Error(resp.Err))
			c.watchFailed = true
			return c.dispatch()
		}

		c.publish(resp)

		c.asm = protocol.NewAssembler(false)
		return c.write(c.watchRequest.Data)

	case StateCancellingWatch:
		// The watch may have fired before noidle reached the server, in which
		// case the changes are real and still go out.
		if resp.Err == nil {
			c.publish(resp)
		}

		return c.dispatch()
	}

	return nil
}

// publish fans the changed subsystems of resp out to every subscriber. The
// Subsystems slice is shared between them.
func (c *Conn) publish(resp *protocol.Response) {
	var changed []string
	for i := range resp.Frames {
		changed = append(changed, resp.Frames[i].All(protocol.ChangedKey)...)
	}

	if len(changed) == 0 {
		return
	}

	ev := Event{Subsystems: subsystems(changed)}

	c.log.Debug("Publishing changes",
		zap.Strings("subsystems", changed),
		zap.Int("subscribers", len(c.subscribers)),
	)

	for sub := range c.subscribers {
		sub.deliver(ev, c.log)
	}
}

func (c *Conn) shutdown(cause error, log *zap.Logger) {
	c.setState(StateClosed)
	c.err = cause

	if err := c.rwc.Close(); err != nil {
		log.Debug("Closing transport failed", zap.Error(err))
	}

	if errors.Is(cause, errClosedLocally) {
		log.Info("Connection closed")
	} else {
		log.Error("Connection lost", zap.Error(cause))
	}

	closed := &ConnectionClosedError{Cause: cause}

	if c.current != nil {
		c.current.respond(nil, &ConnectionClosedError{Cause: multierr.Append(cause, c.asm.Abort())})
		c.current = nil
	}

	for c.backlog.Length() > 0 {
		c.backlog.Remove().(*envelope).respond(nil, closed)
	}

	for sub := range c.subscribers {
		sub.terminate(closed)
		delete(c.subscribers, sub)
	}

	close(c.done)
}
