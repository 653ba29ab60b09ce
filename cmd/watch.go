package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/mpdmux/client"
)

var watchSubsystems []string

func init() {
	WatchCmd.Flags().StringSliceVarP(&watchSubsystems, "subsystems", "s", nil,
		"Only report changes to these subsystems")
}

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print change events as they happen",
	Long: `Print change events as they happen

Usage
	mpdmux watch --subsystems player,mixer

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, conn, done, err := oneShot(cmd.Context(), func(opts *client.Options) {
			for _, s := range watchSubsystems {
				opts.WatchSubsystems = append(opts.WatchSubsystems, client.Subsystem(s))
			}
		})
		if err != nil {
			return err
		}

		defer done()

		sub, err := conn.Subscribe()
		if err != nil {
			return err
		}

		defer sub.Close()

		out := cmd.OutOrStdout()

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev := <-sub.Events():
				if ev.Closed {
					return ev.Err
				}

				names := make([]string, len(ev.Subsystems))
				for i, s := range ev.Subsystems {
					names[i] = string(s)
				}

				if _, err := fmt.Fprintln(out, strings.Join(names, " ")); err != nil {
					return err
				}
			}
		}
	},
}
