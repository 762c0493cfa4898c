package main

import (
	"os"

	"github.com/chainsafe/anchor-orchestrator/cmd/orchestrator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
