package cmd

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/cmd/gen"
	"github.com/luma/mpdmux/internal/env"
)

var (
	// Loaded before every command runs, flags override it
	conf *env.Config

	network  string
	addr     string
	password string
	logLevel string
)

var RootCmd = &cobra.Command{
	Use:   "mpdmux",
	Short: "Share one MPD connection between many callers",
	Long: `Share one MPD connection between many callers

mpdmux keeps a single connection to a music player daemon, queues requests
from any number of callers on it and watches for change events while the
connection would otherwise be idle.

Configuration is read from MPDMUX_* variables and .env.local, the flags
below take precedence.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context())
		if err != nil {
			return err
		}

		flags := cmd.Flags()

		if flags.Changed("network") {
			conf.Network = network
		}

		if flags.Changed("addr") {
			conf.Addr = addr
		}

		if flags.Changed("password") {
			conf.Password = password
		}

		if flags.Changed("log-level") {
			conf.LogLevel = logLevel
		}

		return nil
	},
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVar(&network, "network", "tcp", "The network of the daemon address (tcp or unix)")
	flags.StringVarP(&addr, "addr", "a", "localhost:6600", "The daemon address")
	flags.StringVar(&password, "password", "", "The password to authenticate with")
	flags.StringVar(&logLevel, "log-level", "info", "The log level")

	RootCmd.AddCommand(ServeCmd, SendCmd, ListCmd, WatchCmd, ArtCmd, VersionCmd, gen.RootCmd)
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// dial connects to the configured daemon. ctx bounds the dial and the
// connection setup.
func dial(ctx context.Context, opts client.Options) (*client.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, conf.DialTimeout)
	defer cancel()

	dialer := net.Dialer{}

	rwc, err := dialer.DialContext(ctx, conf.Network, conf.Addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", conf.Addr, err)
	}

	conn, err := client.Connect(ctx, rwc, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", conf.Addr, err)
	}

	opts.Log.Info("Connected",
		zap.String("addr", conf.Addr),
		zap.String("version", conn.Greeting().Version))

	return conn, nil
}
