package main

import (
	"os"

	"github.com/yakov55994/manage-sub003/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
