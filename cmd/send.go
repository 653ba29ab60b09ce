package cmd

import (
	"github.com/spf13/cobra"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/protocol"
)

var SendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Run a single command and print its response",
	Long: `Run a single command and print its response

Usage
	mpdmux send status
	mpdmux send find artist "Daft Punk"

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, conn, done, err := oneShot(cmd.Context(), func(opts *client.Options) {
			opts.WatchDelay = -1
		})
		if err != nil {
			return err
		}

		defer done()

		frame, err := conn.Command(ctx, protocol.NewCommand(args[0], args[1:]...))
		if err != nil {
			return err
		}

		return printFrames(cmd.OutOrStdout(), []protocol.Frame{*frame})
	},
}
