package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/digestion"
)

var proteasesCmd = &cobra.Command{
	Use:   "proteases",
	Short: "List the available proteases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := digestion.NewProteaseRegistry()
		for _, name := range registry.Names() {
			p, err := registry.Get(name)
			if err != nil {
				return err
			}
			motifs := make([]string, len(p.Motifs))
			for i, m := range p.Motifs {
				motifs[i] = m.String()
			}
			switch {
			case p.Specificity == digestion.None:
				fmt.Printf("%-45s cleaves every bond\n", name)
			case p.NoCleavage():
				fmt.Printf("%-45s no cleavage\n", name)
			default:
				fmt.Printf("%-45s %s\n", name, strings.Join(motifs, ","))
			}
		}
		return nil
	},
}
