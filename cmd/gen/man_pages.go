package gen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/mpdmux/internal/meta"
)

var (
	manDir     string
	manSection string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for mpdmux",
	Long: `Write one man page per mpdmux command, named after the command path
(mpdmux-serve.1, mpdmux-send.1, ...). Existing pages are overwritten.

Usage
	mpdmux gen man --dir /usr/local/share/man/man1

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return GenerateManPages(cmd.Root(), manDir, manSection, cmd.OutOrStdout())
	},
}

// GenerateManPages writes the pages for root and every command below it into
// dir, creating it when needed.
func GenerateManPages(root *cobra.Command, dir, section string, out io.Writer) error {
	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	header := &doc.GenManHeader{
		Section: section,
		Manual:  "mpdmux Manual",
		Source:  "mpdmux " + meta.Version,
	}

	root.DisableAutoGenTag = true

	if err := doc.GenManTree(root, header, dir); err != nil {
		return fmt.Errorf("generating man pages: %w", err)
	}

	fmt.Fprintln(out, "Wrote man pages to", dir)

	return nil
}

func init() {
	flags := ManPagesCmd.Flags()

	flags.StringVar(&manDir, "dir", "man", "The directory to write the man pages to")
	flags.StringVar(&manSection, "section", "1", "The manual section of the pages")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
