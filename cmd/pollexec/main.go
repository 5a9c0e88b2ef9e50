// Command pollexec drives the cooperative executor from the command line:
// it spawns sleep and blocking tasks, waits for them and reports the result.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
