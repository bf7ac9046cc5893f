package main

import (
	"fmt"
	"os"

	"basegraph.app/standup/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "standupctl:", err)
		os.Exit(1)
	}
}
