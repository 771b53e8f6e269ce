package cmd

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/reader"
)

// maxReportedErrors limits the validation errors printed per file.
const maxReportedErrors = 20

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a spectra file",
	Long:  `Validate that a spectra file (mzML, MGF or MSP) is properly formatted and that every scan can be searched.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a spectra file",
	Long:  `Print summary statistics about a spectra file including scan count, m/z ranges, precursor charges and dissociation types.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func runValidate(cmd *cobra.Command, args []string) error {
	scans, err := reader.ReadFile(args[0], core.Unknown)
	if err != nil {
		return err
	}
	invalid := 0
	for _, scan := range scans {
		if err := scan.Validate(); err != nil {
			if invalid < maxReportedErrors {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			invalid++
		}
	}
	fmt.Printf("Scans: %d\n", len(scans))
	fmt.Printf("Invalid: %d\n", invalid)
	if invalid > 0 {
		return fmt.Errorf("%d of %d scans in %s are invalid", invalid, len(scans), args[0])
	}
	fmt.Printf("%s is valid\n", args[0])
	return nil
}

// Summary holds the statistics printed by summarize.
type Summary struct {
	Scans         int
	Peaks         int
	MinMZ         float64
	MaxMZ         float64
	MinPrecursor  float64
	MaxPrecursor  float64
	MinRT         float64
	MaxRT         float64
	Charges       map[int]int
	Dissociations map[core.DissociationType]int
	Coisolated    int
}

// summarize computes the statistics of scans. Ranges are NaN when no value was seen.
func summarize(scans []*core.Scan) Summary {
	s := Summary{
		MinMZ: math.NaN(), MaxMZ: math.NaN(),
		MinPrecursor: math.NaN(), MaxPrecursor: math.NaN(),
		MinRT: math.NaN(), MaxRT: math.NaN(),
		Charges:       make(map[int]int),
		Dissociations: make(map[core.DissociationType]int),
	}
	extend := func(lo, hi *float64, v float64) {
		if math.IsNaN(*lo) || v < *lo {
			*lo = v
		}
		if math.IsNaN(*hi) || v > *hi {
			*hi = v
		}
	}
	for _, scan := range scans {
		s.Scans++
		s.Peaks += len(scan.Peaks)
		for _, p := range scan.Peaks {
			extend(&s.MinMZ, &s.MaxMZ, p.MZ)
		}
		precursors := scan.PrecursorList()
		if len(precursors) > 1 {
			s.Coisolated++
		}
		for _, p := range precursors {
			extend(&s.MinPrecursor, &s.MaxPrecursor, p.MZ)
			s.Charges[p.Charge]++
		}
		if scan.RetentionTime > 0 {
			extend(&s.MinRT, &s.MaxRT, scan.RetentionTime)
		}
		s.Dissociations[scan.Dissociation]++
	}
	return s
}

func runSummarize(cmd *cobra.Command, args []string) error {
	scans, err := reader.ReadFile(args[0], core.Unknown)
	if err != nil {
		return err
	}
	s := summarize(scans)

	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("Scans: %d\n", s.Scans)
	if s.Scans == 0 {
		return nil
	}
	fmt.Printf("Peaks: %d (%.1f per scan)\n", s.Peaks, float64(s.Peaks)/float64(s.Scans))
	fmt.Printf("Peak m/z range: %.4f - %.4f\n", s.MinMZ, s.MaxMZ)
	fmt.Printf("Precursor m/z range: %.4f - %.4f\n", s.MinPrecursor, s.MaxPrecursor)
	if !math.IsNaN(s.MinRT) {
		fmt.Printf("Retention time: %.2f - %.2f min\n", s.MinRT, s.MaxRT)
	}
	if s.Coisolated > 0 {
		fmt.Printf("Scans with coisolated precursors: %d\n", s.Coisolated)
	}

	charges := make([]int, 0, len(s.Charges))
	for z := range s.Charges {
		charges = append(charges, z)
	}
	sort.Ints(charges)
	fmt.Printf("Precursor charges:\n")
	for _, z := range charges {
		fmt.Printf("  %+d: %d\n", z, s.Charges[z])
	}

	types := make([]core.DissociationType, 0, len(s.Dissociations))
	for d := range s.Dissociations {
		types = append(types, d)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	fmt.Printf("Dissociation:\n")
	for _, d := range types {
		fmt.Printf("  %s: %d\n", d, s.Dissociations[d])
	}
	return nil
}
