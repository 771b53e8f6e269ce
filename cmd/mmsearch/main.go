// mmsearch - Peptide spectrum matching with target-decoy FDR
package main

import (
	"fmt"
	"os"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/cmd/mmsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
