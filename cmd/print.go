package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/internal/env"
	"github.com/luma/mpdmux/protocol"
)

// printFrames writes frames the way the daemon sent them, with a blank line
// between the frames of a command list. Binary payloads are left out.
func printFrames(w io.Writer, frames []protocol.Frame) error {
	for i, frame := range frames {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}

		for _, field := range frame.Fields {
			if _, err := fmt.Fprintf(w, "%s: %s\n", field.Key, field.Value); err != nil {
				return err
			}
		}
	}

	return nil
}

// oneShot connects for a single command line invocation and stops on SIGINT
// or SIGTERM.
func oneShot(parent context.Context, modify func(*client.Options)) (context.Context, *client.Conn, func(), error) {
	ctx, signalStop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		signalStop()
		return nil, nil, nil, err
	}

	opts := conf.ClientOptions(log)
	if modify != nil {
		modify(&opts)
	}

	conn, err := dial(ctx, opts)
	if err != nil {
		signalStop()
		return nil, nil, nil, err
	}

	done := func() {
		if err := conn.Close(); err != nil {
			log.Warn("Failed to close connection", zap.Error(err))
		}

		signalStop()
		_ = log.Sync()
	}

	return ctx, conn, done, nil
}
