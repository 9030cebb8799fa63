// Command taskrunner is the CLI entry point: run a DAG once, or start the
// persistent scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/flowcore/taskrunner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
