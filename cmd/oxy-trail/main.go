// Command oxy-trail drives trail sets from a config file, either in a window through the
// WebGPU renderer or headless on the software backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
