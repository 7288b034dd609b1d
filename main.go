package main

import (
	"context"
	"os"

	"github.com/askdb/askdb/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(int(cli.Run(context.Background(), Version, os.Args[1:])))
}
