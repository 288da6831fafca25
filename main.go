package main

import (
	"os"

	"github.com/leokalinowski/purpose-driven-crm/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
