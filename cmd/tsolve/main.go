// Command tsolve decides trait obligations for CUE programs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tsolve/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
