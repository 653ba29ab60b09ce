package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/storage"
)

// HTTP exposes a single daemon connection to any number of HTTP clients.
// Requests are queued on the connection in arrival order.
type HTTP struct {
	addr      string
	reuseport bool

	daemon Daemon
	store  storage.Store
	router *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	log *zap.Logger
}

func NewHTTP(options Options) *HTTP {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	log = log.Named("http")

	h := &HTTP{
		addr:      net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport: options.Reuseport,
		daemon:    options.Daemon,
		store:     options.Store,
		router:    setupRouter(options.DebugHTTP, options.AllowOrigins, log),
		log:       log,
	}

	h.routes()

	return h
}

func (h *HTTP) routes() {
	h.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	h.router.GET("/health", h.health)
	h.router.POST("/command", h.command)
	h.router.GET("/art", h.art)
	h.router.GET("/events", h.events)

	if h.store != nil {
		h.router.GET("/state", h.state)
	}
}

// Handler returns the router, mostly for tests.
func (h *HTTP) Handler() http.Handler {
	return h.router
}

// Start listens and serves in the background. ctx becomes the base context of
// every request.
func (h *HTTP) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return errors.New("http server already started")
	}

	var (
		listener net.Listener
		err      error
	)

	if h.reuseport {
		listener, err = reuseport.Listen("tcp", h.addr)
	} else {
		listener, err = net.Listen("tcp", h.addr)
	}

	if err != nil {
		return err
	}

	h.listener = listener
	h.server = &http.Server{
		Handler: h.router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h.log.Info("Listening", zap.String("addr", listener.Addr().String()))

	server := h.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("Http server errored", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the address the server listens on, empty before Start.
func (h *HTTP) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return ""
	}

	return h.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for the running ones until ctx
// ends. The daemon connection stays open.
func (h *HTTP) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	server := h.server
	h.mu.Unlock()

	if server == nil {
		return nil
	}

	server.SetKeepAlivesEnabled(false)

	return server.Shutdown(ctx)
}

// Close immediately closes the server and the daemon connection.
//
// For a graceful shutdown, call Shutdown first.
func (h *HTTP) Close() (err error) {
	h.mu.Lock()
	server := h.server
	h.mu.Unlock()

	if server != nil {
		err = multierr.Append(err, server.Close())
	}

	return multierr.Append(err, h.daemon.Close())
}
