package main

import (
	"os"

	"github.com/wonny/leadscore/cmd/leadscore/commands"
)

// main is the entry point for the leadscore CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/leadscore [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
