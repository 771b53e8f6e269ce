// Package cmd provides CLI command implementations
package cmd

import (
	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool

	// Inputs
	spectraFiles     []string
	databaseFiles    []string
	contaminantFiles []string
	modsCSV          string
	outputFile       string

	// Digestion
	protease            string
	missedCleavages     int
	minPeptideLength    int
	maxPeptideLength    int
	initiatorMethionine string
	semiSpecific        bool
	maxModsForPeptide   int
	maxModIsoforms      int
	fixedMods           string
	variableMods        string
	decoyType           string
	decoyPrefix         string
	tcAmbiguity         string
	deduplicate         bool

	// Fragmentation and index
	dissociation         string
	customIons           string
	maxFragmentMass      float64
	precursorIndex       bool
	fallbackDissociation string

	// Search
	engine             string
	productTolerance   string
	precursorTolerance string
	acceptorKind       string
	customAcceptor     string
	scoreCutoff        float64
	scoring            string
	topN               int
	bestPerNotch       bool
	reportAllAmbiguity bool
	addCompIons        bool
	maxDoubledMass     float64

	// Peak filtering
	peaksPerWindow    int
	minIntensityRatio float64
	windowWidth       float64
	numWindows        int
	normalizeWindows  bool

	// FDR
	doPEP               bool
	strictFDR           bool
	overrideMinCount    bool
	excludeContaminants bool
	qValueCutoff        float64
	pepQValueCutoff     float64
	threads             int
)

var rootCmd = &cobra.Command{
	Use:   "mmsearch",
	Short: "mmsearch - Peptide spectrum matching with target-decoy FDR",
	Long: `mmsearch digests protein databases, indexes the theoretical fragments of every
peptide and matches MS2 scans (mzML, MGF, MSP) against them.

Supports:
- Indexed (modern) and exhaustive (classic) search
- Exact, isotope-notch, interval and open precursor mass acceptors
- Fixed and variable modifications, semi-specific digestion
- Target-decoy q-values, notch q-values and posterior error probabilities
- Results stored in a SQLite database`,
	Version: "1.0.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case verbose:
			log.SetLevel(log.Debug)
		case quiet:
			log.SetLevel(log.Error)
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-stage details")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Log errors only")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(proteasesCmd)

	// Search command flags
	searchCmd.Flags().StringSliceVarP(&spectraFiles, "spectra", "s", nil, "Spectra files: mzML, MGF or MSP (required)")
	searchCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output SQLite database (no output if empty)")
	searchCmd.Flags().StringVar(&fallbackDissociation, "file-dissociation", "", "Dissociation assumed for scans that do not state one (default: --dissociation)")
	searchCmd.Flags().StringVar(&engine, "engine", "modern", "Search engine: modern (fragment index) or classic")
	searchCmd.Flags().StringVar(&productTolerance, "product-tolerance", "20 ppm", "Product mass tolerance, e.g. '20 ppm' or '0.02 Da'")
	searchCmd.Flags().StringVar(&precursorTolerance, "precursor-tolerance", "5 ppm", "Precursor mass tolerance")
	searchCmd.Flags().StringVar(&acceptorKind, "acceptor", "Exact", "Mass difference acceptor: Exact, OneMM, TwoMM, ThreeMM, PlusOrMinusThreeMM, ModOpen, Open, Custom")
	searchCmd.Flags().StringVar(&customAcceptor, "custom-acceptor", "", "Custom acceptor, e.g. 'name dot 5 ppm 0,1.0029' or 'name interval [-2;2]'")
	searchCmd.Flags().Float64Var(&scoreCutoff, "score-cutoff", 5, "Minimum score of a reported match")
	searchCmd.Flags().StringVar(&scoring, "scoring", "Morpheus", "Scoring function: Morpheus or Count")
	searchCmd.Flags().IntVar(&topN, "top-n", 1, "Score tiers kept per scan")
	searchCmd.Flags().BoolVar(&bestPerNotch, "best-per-notch", false, "Keep --top-n score tiers for every precursor notch")
	searchCmd.Flags().BoolVar(&reportAllAmbiguity, "report-all-ambiguity", true, "Keep every hypothesis tied for the best score")
	searchCmd.Flags().BoolVar(&addCompIons, "comp-ions", false, "Also match complementary fragment ions")
	searchCmd.Flags().Float64Var(&maxDoubledMass, "max-doubled-mass", 0, "Ions up to this mass score twice (0 = off)")
	searchCmd.Flags().IntVar(&peaksPerWindow, "peaks-per-window", 200, "Keep only the N most intense peaks of each window (0 = no limit)")
	searchCmd.Flags().Float64Var(&minIntensityRatio, "min-intensity-ratio", 0.01, "Drop peaks below this fraction of the window's base peak")
	searchCmd.Flags().Float64Var(&windowWidth, "window-width", 0, "Peak filtering window width in Th (0 = whole scan)")
	searchCmd.Flags().IntVar(&numWindows, "num-windows", 0, "Split each scan into this many filtering windows")
	searchCmd.Flags().BoolVar(&normalizeWindows, "normalize-windows", false, "Normalize window intensities to the base peak")
	searchCmd.Flags().BoolVar(&doPEP, "pep", true, "Estimate posterior error probabilities")
	searchCmd.Flags().BoolVar(&strictFDR, "strict-fdr", false, "Fail when there are too few matches for q-values")
	searchCmd.Flags().BoolVar(&overrideMinCount, "override-min-count", false, "Trust q-values of small result sets")
	searchCmd.Flags().BoolVar(&excludeContaminants, "exclude-contaminants", false, "Leave contaminant-only matches out of FDR counts")
	searchCmd.Flags().Float64Var(&qValueCutoff, "q-value", 0.01, "q-value threshold of the reported summary")
	searchCmd.Flags().Float64Var(&pepQValueCutoff, "pep-q-value", 0, "PEP q-value threshold of the reported summary (0 = off)")
	addDatabaseFlags(searchCmd)

	searchCmd.MarkFlagRequired("spectra")
	searchCmd.MarkFlagRequired("db")

	// Index command flags
	addDatabaseFlags(indexCmd)
	indexCmd.MarkFlagRequired("db")
}

// addDatabaseFlags registers the flags that control digestion and indexing.
func addDatabaseFlags(c *cobra.Command) {
	c.Flags().StringSliceVarP(&databaseFiles, "db", "d", nil, "Protein FASTA files (required)")
	c.Flags().StringSliceVar(&contaminantFiles, "contaminants", nil, "FASTA files whose proteins are contaminants")
	c.Flags().StringVar(&modsCSV, "mods", "", "CSV file of additional modifications")
	c.Flags().StringVar(&protease, "protease", "trypsin", "Protease name (see 'mmsearch proteases')")
	c.Flags().IntVar(&missedCleavages, "missed-cleavages", 2, "Maximum missed cleavages")
	c.Flags().IntVar(&minPeptideLength, "min-length", 7, "Minimum peptide length")
	c.Flags().IntVar(&maxPeptideLength, "max-length", 50, "Maximum peptide length (0 = unlimited)")
	c.Flags().StringVar(&initiatorMethionine, "initiator-methionine", "Variable", "Initiator methionine: Variable, Retain or Cleave")
	c.Flags().BoolVar(&semiSpecific, "semi", false, "Semi-specific digestion")
	c.Flags().IntVar(&maxModsForPeptide, "max-mods", 2, "Maximum variable modifications per peptide")
	c.Flags().IntVar(&maxModIsoforms, "max-isoforms", 1024, "Maximum modification isoforms per peptide")
	c.Flags().StringVar(&fixedMods, "fixed", "Carbamidomethyl on C", "Fixed modifications separated by ';'")
	c.Flags().StringVar(&variableMods, "variable", "Oxidation on M", "Variable modifications separated by ';'")
	c.Flags().StringVar(&decoyType, "decoys", "reverse", "Decoy generation: reverse or none")
	c.Flags().StringVar(&decoyPrefix, "decoy-prefix", "DECOY_", "Accession prefix of decoy proteins")
	c.Flags().StringVar(&tcAmbiguity, "tc-ambiguity", "RemoveContaminant", "Peptides shared by targets and contaminants: KeepAll, RemoveContaminant or RemoveTarget")
	c.Flags().BoolVar(&deduplicate, "deduplicate", true, "Index each full sequence once")
	c.Flags().StringVar(&dissociation, "dissociation", "HCD", "Dissociation type: HCD, CID, ECD, ETD, EThcD, IRMPD, LowCID or Custom")
	c.Flags().StringVar(&customIons, "custom-ions", "", "Product types of Custom dissociation, e.g. 'b,y'")
	c.Flags().Float64Var(&maxFragmentMass, "max-fragment-mass", 30000, "Largest indexed fragment mass in Da")
	c.Flags().BoolVar(&precursorIndex, "precursor-index", false, "Build a precursor mass index")
	c.Flags().IntVar(&threads, "threads", 0, "Number of worker threads (0 = all CPUs)")
}
