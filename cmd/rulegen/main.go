// Command rulegen reads a workspace description and emits the rule graph
// a separate executor would run: compile, archive, stub, generator, and
// install rules for every directory's declared stanzas.
package main

import (
	"log"
	"os"

	"github.com/rdavison/dune"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("rulegen: %v", err)
		os.Exit(1)
	}
	if err := dune.RunAtExit(); err != nil {
		log.Printf("rulegen: at-exit: %v", err)
		os.Exit(1)
	}
}
