package main

import (
	"os"

	"github.com/vox-os/vox-memory/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
