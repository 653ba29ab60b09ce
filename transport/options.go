package transport

import (
	"context"

	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/protocol"
	"github.com/luma/mpdmux/storage"
)

// Daemon is the connection the gateway forwards to. *client.Conn implements it.
type Daemon interface {
	Greeting() protocol.Greeting
	State() client.State
	Submit(ctx context.Context, req protocol.Request) (*protocol.Response, error)
	Subscribe(opts ...client.SubscribeOption) (*client.Subscription, error)
	Artwork(ctx context.Context, uri string) (*client.Blob, error)
	Close() error
}

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, 0 picks a free one
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// DebugHTTP puts gin in debug mode
	DebugHTTP bool

	// AllowOrigins enables CORS for browser clients on these origins
	AllowOrigins []string

	Daemon Daemon

	// Store holds the mirrored daemon state served under /state
	Store storage.Store

	Log *zap.Logger
}
