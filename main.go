package main

import (
	"github.com/luma/mpdmux/cmd"
)

func main() {
	cmd.Execute()
}
