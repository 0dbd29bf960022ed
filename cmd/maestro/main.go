// Command maestro is a reference CLI around the consensus engine: it can
// generate a demo genesis file, run a local multi-validator network
// in-process, and inspect a validator's WAL file after the fact.
//
// Structured as a cobra root command with subcommand-constructor
// functions (adapted from the Lux consensus CLI's cmd/consensus layout),
// with the demo application itself (demoapp.go) adapted from the
// teacher's cmd/gordian-echo.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "Run and inspect the maestro BFT consensus engine",
}

func main() {
	rootCmd.AddCommand(
		genesisCmd(),
		startCmd(),
		inspectWALCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
