package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Digest protein databases and report index statistics",
	Long: `Build the fragment index for a protein database without searching, and print
peptide and bucket counts. Useful for sizing digestion and modification settings.

Examples:
  mmsearch index --db human.fasta --missed-cleavages 1 --variable "Oxidation on M;Phosphorylation on S"`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	idx, proteins, err := buildIndex(cmd)
	if err != nil {
		return err
	}

	targets, decoys, contaminants := 0, 0, 0
	for _, p := range idx.Peptides {
		switch {
		case p.IsDecoy():
			decoys++
		case p.IsContaminant():
			contaminants++
		default:
			targets++
		}
	}

	fmt.Printf("Proteins: %d\n", len(proteins))
	fmt.Printf("Peptides: %d (%d target, %d decoy, %d contaminant)\n", len(idx.Peptides), targets, decoys, contaminants)
	if idx.Unindexed > 0 {
		fmt.Printf("Peptides without mass: %d\n", idx.Unindexed)
	}
	fmt.Printf("Fragment index: %d entries in %d of %d buckets\n", idx.Fragment.Entries(), idx.Fragment.NonEmpty(), idx.Fragment.Len())
	if idx.Precursor != nil {
		fmt.Printf("Precursor index: %d entries in %d buckets\n", idx.Precursor.Entries(), idx.Precursor.NonEmpty())
	}
	// Peptides without mass sort last.
	if n := len(idx.Peptides) - idx.Unindexed; n > 0 {
		fmt.Printf("Mass range: %.4f - %.4f Da\n", idx.Peptides[0].MonoisotopicMass(), idx.Peptides[n-1].MonoisotopicMass())
	}
	fmt.Printf("Build time: %v\n", idx.Elapsed)
	return nil
}
