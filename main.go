package main

import (
	"os"

	"pdfsqueeze/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
