package main

import (
	"fmt"
	"os"

	"github.com/goomario/arweave/cmd/weave-syncd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
