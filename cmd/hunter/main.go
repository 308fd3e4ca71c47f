package main

import (
	"os"

	"github.com/stockhunter/stockhunter/cmd/hunter/commands"
)

// main is the entry point for the StockHunter CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
