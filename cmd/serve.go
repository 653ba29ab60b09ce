package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/internal/env"
	"github.com/luma/mpdmux/storage"
	"github.com/luma/mpdmux/transport"
)

var (
	// The host to listen for http requests on
	httpHost string

	// The port to listen for http requests on
	httpPort int
)

func init() {
	flags := ServeCmd.Flags()

	flags.IntVarP(&httpPort, "http-port", "p", 7362, "The port to listen to HTTP requests on")
	flags.StringVar(&httpHost, "http-host", "0.0.0.0", "The host to listen to HTTP requests on")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the daemon connection over HTTP",
	Long: `Serve the daemon connection over HTTP

Usage
	mpdmux serve --addr localhost:6600 --http-port 7362

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}

		defer func() {
			_ = log.Sync()
		}()

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		if cmd.Flags().Changed("http-host") {
			conf.HTTPHost = httpHost
		}

		if cmd.Flags().Changed("http-port") {
			conf.HTTPPort = httpPort
		}

		conn, err := dial(ctx, conf.ClientOptions(log))
		if err != nil {
			return err
		}

		store := storage.NewInmemoryStore()
		defer store.Close()

		mirror := storage.NewMirror(conn, store, log)
		mirrorDone := make(chan error, 1)
		go func() {
			mirrorDone <- mirror.Run(ctx)
		}()

		server := transport.NewHTTP(transport.Options{
			Host:         conf.HTTPHost,
			Port:         conf.HTTPPort,
			Reuseport:    true,
			DebugHTTP:    conf.DebugHTTP,
			AllowOrigins: conf.HTTPAllowOrigins,
			Daemon:       conn,
			Store:        store,
			Log:          log,
		})

		if err := server.Start(ctx); err != nil {
			return multierr.Append(err, conn.Close())
		}

		log.Info("Listening",
			zap.String("daemon", conf.Addr),
			zap.String("http", server.Addr()))

		select {
		case <-ctx.Done():
		case <-conn.Done():
			// There is no reconnect, the process supervisor restarts us
			err = conn.Err()
			log.Error("Lost the daemon connection", zap.Error(err))
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Error("Http server forced to shutdown", zap.Error(serr))
		}

		err = multierr.Append(err, server.Close())

		if merr := <-mirrorDone; merr != nil && ctx.Err() == nil {
			log.Warn("Mirror stopped", zap.Error(merr))
		}

		log.Info("Exiting")
		return err
	},
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
