package main

import (
	"os"

	"certhub/internal/cli"
)

// version 由 -ldflags 注入
var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
