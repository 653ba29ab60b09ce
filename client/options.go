package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/luma/mpdmux/protocol"
)

const (
	DefaultWatchDelay       = 100 * time.Millisecond
	DefaultSubscriberBuffer = 16

	readBufferSize = 32 * 1024
)

type Options struct {
	Log *zap.Logger

	// WatchDelay is how long the connection stays quiet after a reply before it
	// starts watching for changes. Zero means DefaultWatchDelay, a negative
	// value disables watching.
	WatchDelay time.Duration

	// WatchSubsystems restricts the watch to these subsystems. Empty means all.
	WatchSubsystems []Subsystem

	// Password is sent right after the greeting when set.
	Password string

	// BinaryLimit asks the daemon for bigger binary chunks when positive.
	BinaryLimit int

	// SubscriberBuffer is the default size of a subscription's event buffer.
	SubscriberBuffer int

	Limits protocol.Limits
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	if o.WatchDelay == 0 {
		o.WatchDelay = DefaultWatchDelay
	}

	if o.SubscriberBuffer < 1 {
		o.SubscriberBuffer = DefaultSubscriberBuffer
	}

	return o
}
