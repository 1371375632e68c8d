// Package main implements the gpp CLI. It builds control flow graphs for C and C++
// sources and extracts prime paths from them.
package main

import (
	"os"

	"github.com/l3aro/go-prime-paths/cmd/gpp/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`gpp version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
