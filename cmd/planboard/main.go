package main

import (
	"os"

	"planboard/internal/shared/version"
	"planboard/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(version.Version, os.Args[1:]))
}
