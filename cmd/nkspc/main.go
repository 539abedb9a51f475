// Command nkspc is a host-tooling stand-in for the sampler's own CLI: it
// lints and dumps NKSP scripts using the same front end the embedding
// library exposes, without pulling in any audio engine.
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
