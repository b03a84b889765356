package main

import (
	"fmt"
	"os"

	cmdpkg "github.com/mcporter/mcporter/cmd/mcporter/cmd"
)

func main() {
	if err := cmdpkg.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
