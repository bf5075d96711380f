// Command lime is the command line front end for the lime document store.
// It can run the json http api server, seed demo data and perform one-shot
// operations against a local data directory.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
