package main

import (
	"os"

	"github.com/moorebrett0/moodstage/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
