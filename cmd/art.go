package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/mpdmux/client"
)

var artOutput string

func init() {
	ArtCmd.Flags().StringVarP(&artOutput, "output", "o", "", "Write the artwork to this file instead of stdout")
}

var ArtCmd = &cobra.Command{
	Use:   "art <uri>",
	Short: "Download the artwork of a song",
	Long: `Download the artwork of a song

The picture embedded in the song is preferred, the cover file in its
directory is used otherwise.

Usage
	mpdmux art "Daft Punk/Discovery/01 One More Time.flac" -o cover.jpg

`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, conn, done, err := oneShot(cmd.Context(), func(opts *client.Options) {
			opts.WatchDelay = -1
		})
		if err != nil {
			return err
		}

		defer done()

		blob, err := conn.Artwork(ctx, args[0])
		if err != nil {
			return err
		}

		if artOutput == "" {
			_, err = cmd.OutOrStdout().Write(blob.Data)
			return err
		}

		return os.WriteFile(artOutput, blob.Data, 0o644)
	},
}
