package main

import (
	"os"

	"github.com/dispatchkit/dispatchboard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
