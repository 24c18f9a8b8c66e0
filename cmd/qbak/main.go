// Package main is the entry point for the qbak CLI.
package main

import (
	"os"

	"github.com/thoreinstein/qbak/cmd/qbak/commands"
)

func main() {
	os.Exit(commands.Execute())
}
