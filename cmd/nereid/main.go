package main

import (
	"errors"
	"fmt"
	"os"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCommand(version).Execute(); err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, "usage error:", usage.msg)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
