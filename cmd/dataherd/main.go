package main

import (
	"os"

	"github.com/dataherd/dataherd/cmd/dataherd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
