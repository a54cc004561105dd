package main

import (
	"os"

	"github.com/shelfdesk/shelfdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
