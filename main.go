package main

import (
	"os"

	"github.com/farmsense/server/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
