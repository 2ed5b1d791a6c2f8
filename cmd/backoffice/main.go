package main

import (
	"os"

	"github.com/cairodesk/backoffice/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
