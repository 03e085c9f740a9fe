// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// dictfetch downloads the dictionary files named in the links file into
// the local dictionary directory.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
)

// Main hands control over to the cmd package. It is not redundant with
// main, because it provides an entry point for testing with arbitrary
// command line arguments.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(NewFetchCommand(), ctx, args[1:])
}

func main() {
	os.Exit(Main(os.Args))
}
