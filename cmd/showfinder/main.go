// Command showfinder is the entry point for the Netflix shows finder. It
// provides a CLI (via Cobra) for asking questions, building the embedding
// index and running the HTTP query service.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/showfinder-go/cmd/showfinder/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
