package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/mpdmux/client"
	"github.com/luma/mpdmux/protocol"
)

var ListCmd = &cobra.Command{
	Use:   "list <command> [command...]",
	Short: "Run several commands as one command list",
	Long: `Run several commands as one command list

Each argument is one command, split on whitespace. The frames of the commands
that ran are printed even when a later one fails.

Usage
	mpdmux list status currentsong "playlistinfo 0"

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmds := make([]protocol.Command, 0, len(args))
		for _, arg := range args {
			parts := strings.Fields(arg)
			if len(parts) == 0 {
				continue
			}

			cmds = append(cmds, protocol.NewCommand(parts[0], parts[1:]...))
		}

		ctx, conn, done, err := oneShot(cmd.Context(), func(opts *client.Options) {
			opts.WatchDelay = -1
		})
		if err != nil {
			return err
		}

		defer done()

		frames, ackErr := conn.CommandList(ctx, cmds...)
		if err := printFrames(cmd.OutOrStdout(), frames); err != nil {
			return err
		}

		return ackErr
	},
}
