// Command filtersim replays scripted call sequences through throttle and
// debounce filters on a simulated clock.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/filtergate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
